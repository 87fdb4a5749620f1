package database

import (
	"fmt"

	"marketplace-backend/config"
	"marketplace-backend/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig, logger zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger(logger)})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Migrate brings the schema up to date. Postgres uses AutoMigrate; SQLite
// (local development and tests) gets the hand-written schema because it has
// no gen_random_uuid().
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		return CreateSQLiteSchema(db)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	return db.AutoMigrate(
		&models.Vendor{},
		&models.Category{},
		&models.Product{},
		&models.CartItem{},
		&models.WishlistItem{},
		&models.Order{},
		&models.OrderItem{},
	)
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS "categories" (
		"id" TEXT PRIMARY KEY,
		"name" TEXT NOT NULL,
		"name_localized" TEXT,
		"slug" TEXT NOT NULL UNIQUE,
		"level" INTEGER NOT NULL DEFAULT 1,
		"parent_id" TEXT,
		"icon" TEXT,
		"description" TEXT,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_parent_id ON "categories"("parent_id")`,
	`CREATE TABLE IF NOT EXISTS "vendors" (
		"id" TEXT PRIMARY KEY,
		"name" TEXT NOT NULL,
		"slug" TEXT NOT NULL UNIQUE,
		"owner_id" TEXT NOT NULL,
		"email" TEXT,
		"phone" TEXT,
		"is_active" NUMERIC NOT NULL DEFAULT 0,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS "products" (
		"id" TEXT PRIMARY KEY,
		"vendor_id" TEXT NOT NULL,
		"category_id" TEXT NOT NULL,
		"name" TEXT NOT NULL,
		"slug" TEXT NOT NULL UNIQUE,
		"description" TEXT,
		"price" NUMERIC NOT NULL,
		"stock_quantity" INTEGER DEFAULT 0,
		"is_active" NUMERIC NOT NULL DEFAULT 0,
		"attributes" TEXT,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category_id ON "products"("category_id")`,
	`CREATE TABLE IF NOT EXISTS "cart_items" (
		"id" TEXT PRIMARY KEY,
		"user_id" TEXT NOT NULL,
		"product_id" TEXT NOT NULL,
		"quantity" INTEGER DEFAULT 1,
		"created_at" DATETIME,
		"updated_at" DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_user_product ON "cart_items"("user_id","product_id")`,
	`CREATE TABLE IF NOT EXISTS "wishlist_items" (
		"id" TEXT PRIMARY KEY,
		"user_id" TEXT NOT NULL,
		"product_id" TEXT NOT NULL,
		"created_at" DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_wishlist_user_product ON "wishlist_items"("user_id","product_id")`,
	`CREATE TABLE IF NOT EXISTS "orders" (
		"id" TEXT PRIMARY KEY,
		"user_id" TEXT NOT NULL,
		"customer_email" TEXT NOT NULL,
		"customer_name" TEXT,
		"order_number" TEXT NOT NULL UNIQUE,
		"status" TEXT DEFAULT 'pending',
		"subtotal" NUMERIC NOT NULL,
		"shipping_fee" NUMERIC NOT NULL,
		"total" NUMERIC NOT NULL,
		"shipping_address" TEXT,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS "order_items" (
		"id" TEXT PRIMARY KEY,
		"order_id" TEXT NOT NULL,
		"product_id" TEXT NOT NULL,
		"vendor_id" TEXT NOT NULL,
		"product_name" TEXT NOT NULL,
		"quantity" INTEGER NOT NULL,
		"price" NUMERIC NOT NULL,
		"created_at" DATETIME,
		"updated_at" DATETIME
	)`,
}

// CreateSQLiteSchema creates every table on a SQLite connection.
func CreateSQLiteSchema(db *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}
