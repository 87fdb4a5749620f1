package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxCategoryDepth is the deepest level the storefront renders (root = 1).
const MaxCategoryDepth = 3

// Category is a node in the category forest. Roots have no ParentID.
type Category struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name          string         `gorm:"not null;index" json:"name"`
	NameLocalized string         `json:"name_localized,omitempty"`
	Slug          string         `gorm:"uniqueIndex;not null" json:"slug"`
	Level         int            `gorm:"not null;default:1" json:"level"`
	ParentID      *uuid.UUID     `gorm:"type:uuid;index" json:"parent_id"`
	Parent        *Category      `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children      []Category     `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	Icon          string         `json:"icon"`
	Description   string         `gorm:"type:text" json:"description"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Products      []Product      `gorm:"foreignKey:CategoryID" json:"products,omitempty"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}
