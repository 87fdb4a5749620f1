package database

import (
	"marketplace-backend/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type seedNode struct {
	name     string
	slug     string
	children []seedNode
}

var defaultCategories = []seedNode{
	{name: "Electronics", slug: "electronics", children: []seedNode{
		{name: "Phones", slug: "phones", children: []seedNode{
			{name: "Smartphones", slug: "smartphones"},
			{name: "Phone Cases", slug: "phone-cases"},
		}},
		{name: "Computers", slug: "computers", children: []seedNode{
			{name: "Laptops", slug: "laptops"},
		}},
	}},
	{name: "Books", slug: "books", children: []seedNode{
		{name: "Fiction", slug: "fiction"},
		{name: "Non-Fiction", slug: "non-fiction"},
	}},
	{name: "Home & Garden", slug: "home-garden", children: []seedNode{
		{name: "Kitchen", slug: "kitchen"},
	}},
}

// SeedDefaultCategories inserts a starter category tree when the table is empty.
func SeedDefaultCategories(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return seedLevel(tx, defaultCategories, nil, 1)
	})
	if err != nil {
		return err
	}

	log.Info().Msg("Default categories created")
	return nil
}

func seedLevel(tx *gorm.DB, nodes []seedNode, parent *models.Category, level int) error {
	for _, n := range nodes {
		cat := models.Category{Name: n.name, Slug: n.slug, Level: level}
		if parent != nil {
			cat.ParentID = &parent.ID
		}
		if err := tx.Create(&cat).Error; err != nil {
			return err
		}
		if err := seedLevel(tx, n.children, &cat, level+1); err != nil {
			return err
		}
	}
	return nil
}
