package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	VendorID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"vendor_id"`
	Vendor        *Vendor         `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	CategoryID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	Category      *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name          string          `gorm:"not null;index" json:"name"`
	Slug          string          `gorm:"uniqueIndex;not null" json:"slug"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	StockQuantity int             `gorm:"default:0" json:"stock_quantity"`
	// No DB default: GORM skips zero-value fields that carry one, which would
	// make an inactive product impossible to insert.
	IsActive   bool           `gorm:"not null;index" json:"is_active"`
	Attributes Attributes     `gorm:"type:jsonb;serializer:json" json:"attributes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsPurchasable reports whether qty units can be sold right now.
func (p *Product) IsPurchasable(qty int) bool {
	return p.IsActive && qty > 0 && p.StockQuantity >= qty
}
