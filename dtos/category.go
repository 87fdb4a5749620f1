package dtos

import (
	"marketplace-backend/models"

	"github.com/google/uuid"
)

// BreadcrumbItem is one step of the root-to-category path.
type BreadcrumbItem struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Slug  string    `json:"slug"`
	Level int       `json:"level"`
}

func NewBreadcrumbItem(c models.Category) BreadcrumbItem {
	return BreadcrumbItem{ID: c.ID, Name: c.Name, Slug: c.Slug, Level: c.Level}
}

// CategoryDetail is a category with its parent and children loaded, plus the
// computed breadcrumb and the number of active products assigned directly to it.
type CategoryDetail struct {
	models.Category
	Breadcrumb   []BreadcrumbItem `json:"breadcrumb"`
	ProductCount int64            `json:"product_count"`
}

// CategoryCount is a row of the top-categories ranking.
type CategoryCount struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Level        int       `json:"level"`
	Icon         string    `json:"icon"`
	ProductCount int64     `json:"product_count"`
}

// CategoryWithCount is a tree node annotated with its own active-product count.
// Counts are never summed from descendants.
type CategoryWithCount struct {
	ID           uuid.UUID           `json:"id"`
	Name         string              `json:"name"`
	Slug         string              `json:"slug"`
	Level        int                 `json:"level"`
	Icon         string              `json:"icon"`
	ProductCount int64               `json:"product_count"`
	Children     []CategoryWithCount `json:"children"`
}

type CreateCategoryRequest struct {
	Name          string     `json:"name" binding:"required,max=100"`
	NameLocalized string     `json:"name_localized" binding:"max=100"`
	Slug          string     `json:"slug"`
	ParentID      *uuid.UUID `json:"parent_id"`
	Icon          string     `json:"icon"`
	Description   string     `json:"description"`
}

// UpdateCategoryRequest applies only the fields that are present. Setting
// ClearParent moves the category to the root.
type UpdateCategoryRequest struct {
	Name          *string    `json:"name" binding:"omitempty,max=100"`
	NameLocalized *string    `json:"name_localized" binding:"omitempty,max=100"`
	Slug          *string    `json:"slug"`
	ParentID      *uuid.UUID `json:"parent_id"`
	ClearParent   bool       `json:"clear_parent"`
	Icon          *string    `json:"icon"`
	Description   *string    `json:"description"`
}
