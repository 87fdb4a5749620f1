package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vendor is a seller tenant. OwnerID is the identity-provider subject of the
// account that manages the vendor dashboard.
type Vendor struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"`
	OwnerID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	IsActive  bool           `gorm:"not null" json:"is_active"`
	Products  []Product      `gorm:"foreignKey:VendorID" json:"products,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
