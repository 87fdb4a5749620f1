package handlers

import (
	"errors"
	"net/http"
	"strings"

	"marketplace-backend/models"
	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type VendorHandler struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

type createVendorRequest struct {
	Name    string    `json:"name" binding:"required,max=100"`
	Slug    string    `json:"slug"`
	OwnerID uuid.UUID `json:"owner_id" binding:"required"`
	Email   string    `json:"email" binding:"required,email"`
	Phone   string    `json:"phone" binding:"max=30"`
}

// GetVendor is the public storefront profile of an active vendor.
func (h *VendorHandler) GetVendor(c *gin.Context) {
	db := h.DB.WithContext(c.Request.Context())

	var vendor models.Vendor
	if err := db.Where("slug = ? AND is_active = ?", c.Param("slug"), true).First(&vendor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vendor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vendor"})
		return
	}

	var productCount int64
	if err := db.Model(&models.Product{}).
		Where("vendor_id = ? AND is_active = ?", vendor.ID, true).Count(&productCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vendor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vendor":        vendor,
		"product_count": productCount,
	})
}

func (h *VendorHandler) GetVendors(c *gin.Context) {
	vendors := []models.Vendor{}
	if err := h.DB.WithContext(c.Request.Context()).Order("name ASC").Find(&vendors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vendors"})
		return
	}

	c.JSON(http.StatusOK, vendors)
}

func (h *VendorHandler) CreateVendor(c *gin.Context) {
	var req createVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	vendor := models.Vendor{
		Name:     strings.TrimSpace(req.Name),
		Slug:     strings.TrimSpace(req.Slug),
		OwnerID:  req.OwnerID,
		Email:    req.Email,
		Phone:    req.Phone,
		IsActive: true,
	}
	if vendor.Slug == "" {
		vendor.Slug = utils.Slugify(vendor.Name)
	}
	if err := utils.ValidateSlug(vendor.Slug); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Create(&vendor).Error; err != nil {
		if utils.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Vendor slug already in use"})
			return
		}
		h.Log.Error().Err(err).Str("slug", vendor.Slug).Msg("create vendor")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vendor"})
		return
	}

	c.JSON(http.StatusCreated, vendor)
}

// SetVendorStatus activates or deactivates a vendor. Deactivation also hides
// the vendor's products from the storefront.
func (h *VendorHandler) SetVendorStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vendor ID"})
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	db := h.DB.WithContext(c.Request.Context())

	var vendor models.Vendor
	if err := db.First(&vendor, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vendor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vendor"})
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Vendor{}).Where("id = ?", vendor.ID).Update("is_active", *req.IsActive).Error; err != nil {
			return err
		}
		if !*req.IsActive {
			return tx.Model(&models.Product{}).Where("vendor_id = ?", vendor.ID).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		h.Log.Error().Err(err).Str("vendor_id", vendor.ID.String()).Msg("set vendor status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update vendor"})
		return
	}

	vendor.IsActive = *req.IsActive
	h.Log.Info().Str("vendor_id", vendor.ID.String()).Bool("active", vendor.IsActive).Msg("vendor status changed")
	c.JSON(http.StatusOK, vendor)
}
