package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketplace-backend/dtos"
	"marketplace-backend/middleware"
	"marketplace-backend/models"
	"marketplace-backend/services"
	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

type ProductHandler struct {
	DB         *gorm.DB
	Categories *services.CategoryService
	Log        zerolog.Logger
}

type createProductRequest struct {
	Name          string            `json:"name" binding:"required,max=200"`
	Slug          string            `json:"slug"`
	Description   string            `json:"description"`
	Price         decimal.Decimal   `json:"price"`
	StockQuantity int               `json:"stock_quantity" binding:"gte=0"`
	CategoryID    uuid.UUID         `json:"category_id" binding:"required"`
	Attributes    models.Attributes `json:"attributes"`
	IsActive      *bool             `json:"is_active"`
}

type updateProductRequest struct {
	Name          *string            `json:"name" binding:"omitempty,max=200"`
	Description   *string            `json:"description"`
	Price         *decimal.Decimal   `json:"price"`
	StockQuantity *int               `json:"stock_quantity" binding:"omitempty,gte=0"`
	CategoryID    *uuid.UUID         `json:"category_id"`
	Attributes    *models.Attributes `json:"attributes"`
	IsActive      *bool              `json:"is_active"`
}

// GetProducts lists active products. Supports ?category=<slug>, ?search=,
// ?limit= (max 100) and ?offset=.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultProductPageSize)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxProductPageSize {
		limit = maxProductPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must not be negative"})
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	query := db.Model(&models.Product{}).Where("is_active = ?", true)

	if slug := c.Query("category"); slug != "" {
		var category models.Category
		if err := db.Select("id").Where("slug = ?", slug).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}
		query = query.Where("category_id = ?", category.ID)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Log.Error().Err(err).Msg("count products")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	products := []models.Product{}
	if err := query.Preload("Category").Preload("Vendor").
		Order("name ASC").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		h.Log.Error().Err(err).Msg("list products")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetProduct returns an active product with its category breadcrumb.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx := c.Request.Context()

	var product models.Product
	if err := h.DB.WithContext(ctx).Preload("Category").Preload("Vendor").
		Where("slug = ? AND is_active = ?", c.Param("slug"), true).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	breadcrumb, err := h.Categories.GetBreadcrumb(ctx, product.CategoryID)
	switch {
	case errors.Is(err, services.ErrCategoryNotFound):
		breadcrumb = []dtos.BreadcrumbItem{}
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product":    product,
		"breadcrumb": breadcrumb,
	})
}

// GetVendorProducts lists every product of the caller's vendor, inactive ones included.
func (h *ProductHandler) GetVendorProducts(c *gin.Context) {
	vendorID, _ := middleware.CurrentVendorID(c)

	products := []models.Product{}
	if err := h.DB.WithContext(c.Request.Context()).Preload("Category").
		Where("vendor_id = ?", vendorID).Order("created_at DESC").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	vendorID, _ := middleware.CurrentVendorID(c)
	db := h.DB.WithContext(c.Request.Context())

	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !req.Price.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be greater than 0"})
		return
	}

	if !h.vendorActive(c, vendorID) {
		return
	}

	if !h.categoryExists(c, req.CategoryID) {
		return
	}

	product := models.Product{
		ID:            uuid.New(),
		VendorID:      vendorID,
		CategoryID:    req.CategoryID,
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Price:         req.Price.Round(2),
		StockQuantity: req.StockQuantity,
		IsActive:      true,
		Attributes:    req.Attributes,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	product.Slug = strings.TrimSpace(req.Slug)
	if product.Slug == "" {
		product.Slug = utils.Slugify(product.Name) + "-" + product.ID.String()[:8]
	}
	if err := utils.ValidateSlug(product.Slug); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := db.Create(&product).Error; err != nil {
		if utils.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Product slug already in use"})
			return
		}
		h.Log.Error().Err(err).Str("vendor_id", vendorID.String()).Msg("create product")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	product, ok := h.loadOwnProduct(c)
	if !ok {
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// Only touched columns are written so concurrent stock decrements survive.
	columns := []string{"updated_at"}
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
		columns = append(columns, "name")
	}
	if req.Description != nil {
		product.Description = *req.Description
		columns = append(columns, "description")
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be greater than 0"})
			return
		}
		product.Price = req.Price.Round(2)
		columns = append(columns, "price")
	}
	if req.StockQuantity != nil {
		product.StockQuantity = *req.StockQuantity
		columns = append(columns, "stock_quantity")
	}
	if req.CategoryID != nil {
		if !h.categoryExists(c, *req.CategoryID) {
			return
		}
		product.CategoryID = *req.CategoryID
		columns = append(columns, "category_id")
	}
	if req.Attributes != nil {
		product.Attributes = *req.Attributes
		columns = append(columns, "attributes")
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
		columns = append(columns, "is_active")
	}

	db := h.DB.WithContext(c.Request.Context())
	if err := db.Model(product).Select(columns).Updates(product).Error; err != nil {
		h.Log.Error().Err(err).Str("product_id", product.ID.String()).Msg("update product")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	var updated models.Product
	if err := db.Preload("Category").First(&updated, "id = ?", product.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeactivateProduct hides a product from the storefront. Order history keeps
// referencing it, so the row is never removed.
func (h *ProductHandler) DeactivateProduct(c *gin.Context) {
	product, ok := h.loadOwnProduct(c)
	if !ok {
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(product).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deactivated"})
}

func (h *ProductHandler) loadOwnProduct(c *gin.Context) (*models.Product, bool) {
	vendorID, _ := middleware.CurrentVendorID(c)
	if !h.vendorActive(c, vendorID) {
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return nil, false
	}

	var product models.Product
	if err := h.DB.WithContext(c.Request.Context()).
		Where("id = ? AND vendor_id = ?", id, vendorID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return nil, false
	}
	return &product, true
}

// vendorActive refuses writes from vendors an admin has deactivated.
func (h *ProductHandler) vendorActive(c *gin.Context, vendorID uuid.UUID) bool {
	var vendor models.Vendor
	if err := h.DB.WithContext(c.Request.Context()).First(&vendor, "id = ?", vendorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Vendor account is not active"})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify vendor"})
		return false
	}
	if !vendor.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Vendor account is not active"})
		return false
	}
	return true
}

func (h *ProductHandler) categoryExists(c *gin.Context, id uuid.UUID) bool {
	var count int64
	if err := h.DB.WithContext(c.Request.Context()).Model(&models.Category{}).
		Where("id = ?", id).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify category"})
		return false
	}
	if count == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category does not exist"})
		return false
	}
	return true
}

// respondBindError reports attribute schema mismatches verbatim and sanitises
// everything else.
func respondBindError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrAttributeSchema) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
}
