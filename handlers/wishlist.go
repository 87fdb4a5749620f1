package handlers

import (
	"errors"
	"net/http"

	"marketplace-backend/middleware"
	"marketplace-backend/models"
	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errWishlistItemNotFound = errors.New("wishlist item not found")

type WishlistHandler struct {
	DB *gorm.DB
}

func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	items := []models.WishlistItem{}
	if err := h.DB.WithContext(c.Request.Context()).Preload("Product").
		Where("user_id = ?", userID).Order("created_at DESC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wishlist"})
		return
	}

	c.JSON(http.StatusOK, items)
}

// AddToWishlist is idempotent: saving a product twice returns the existing entry.
func (h *WishlistHandler) AddToWishlist(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		ProductID uuid.UUID `json:"product_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	db := h.DB.WithContext(c.Request.Context())

	var product models.Product
	if err := db.Where("id = ? AND is_active = ?", req.ProductID, true).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var item models.WishlistItem
	err := db.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item).Error
	if err == nil {
		item.Product = product
		c.JSON(http.StatusOK, item)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update wishlist"})
		return
	}

	item = models.WishlistItem{UserID: userID, ProductID: req.ProductID}
	if err := db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update wishlist"})
		return
	}

	item.Product = product
	c.JSON(http.StatusCreated, item)
}

func (h *WishlistHandler) RemoveFromWishlist(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result := h.DB.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", c.Param("id"), userID).Delete(&models.WishlistItem{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update wishlist"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Wishlist item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from wishlist"})
}

// MoveToCart adds one unit of the saved product to the cart and drops it from
// the wishlist in a single transaction.
func (h *WishlistHandler) MoveToCart(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var cartItem *models.CartItem
	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var item models.WishlistItem
		if err := tx.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errWishlistItemNotFound
			}
			return err
		}

		var err error
		if cartItem, err = addToCart(tx, userID, item.ProductID, 1); err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
	if errors.Is(err, errWishlistItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Wishlist item not found"})
		return
	}
	if err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, cartItem)
}
