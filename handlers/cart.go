package handlers

import (
	"errors"
	"net/http"

	"marketplace-backend/middleware"
	"marketplace-backend/models"
	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	errProductUnavailable = errors.New("product not found")
	errInsufficientStock  = errors.New("insufficient stock")
)

type CartHandler struct {
	DB *gorm.DB
}

type cartResponse struct {
	Items     []models.CartItem `json:"items"`
	ItemCount int               `json:"item_count"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cartItems := []models.CartItem{}
	if err := h.DB.WithContext(c.Request.Context()).Preload("Product").Preload("Product.Category").
		Where("user_id = ?", userID).Order("created_at ASC").Find(&cartItems).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return
	}

	resp := cartResponse{Items: cartItems, Subtotal: decimal.Zero}
	for _, item := range cartItems {
		resp.ItemCount += item.Quantity
		resp.Subtotal = resp.Subtotal.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *CartHandler) AddToCart(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		ProductID uuid.UUID `json:"product_id" binding:"required"`
		Quantity  int       `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var cartItem models.CartItem
	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		item, err := addToCart(tx, userID, req.ProductID, req.Quantity)
		if err != nil {
			return err
		}
		cartItem = *item
		return nil
	})
	if err != nil {
		respondCartError(c, err)
		return
	}

	h.DB.WithContext(c.Request.Context()).Preload("Product").Preload("Product.Category").First(&cartItem, "id = ?", cartItem.ID)
	c.JSON(http.StatusOK, cartItem)
}

func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	db := h.DB.WithContext(c.Request.Context())

	var cartItem models.CartItem
	if err := db.Preload("Product").Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&cartItem).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		return
	}

	if !cartItem.Product.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if !cartItem.Product.IsPurchasable(req.Quantity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient stock"})
		return
	}

	if err := db.Model(&models.CartItem{}).Where("id = ?", cartItem.ID).Update("quantity", req.Quantity).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	db.Preload("Product").Preload("Product.Category").First(&cartItem, "id = ?", cartItem.ID)
	c.JSON(http.StatusOK, cartItem)
}

func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result := h.DB.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", c.Param("id"), userID).Delete(&models.CartItem{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item from cart"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// addToCart merges qty into the user's line for productID, capping the total
// at the available stock. A line that cannot hold at least one unit is refused.
func addToCart(tx *gorm.DB, userID, productID uuid.UUID, qty int) (*models.CartItem, error) {
	var product models.Product
	if err := tx.Where("id = ? AND is_active = ?", productID, true).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errProductUnavailable
		}
		return nil, err
	}

	var cartItem models.CartItem
	err := tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&cartItem).Error
	switch {
	case err == nil:
		cartItem.Quantity += qty
		if cartItem.Quantity > product.StockQuantity {
			cartItem.Quantity = product.StockQuantity
		}
		if !product.IsPurchasable(cartItem.Quantity) {
			return nil, errInsufficientStock
		}
		if err := tx.Model(&cartItem).Update("quantity", cartItem.Quantity).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !product.IsPurchasable(qty) {
			return nil, errInsufficientStock
		}
		cartItem = models.CartItem{
			UserID:    userID,
			ProductID: productID,
			Quantity:  qty,
		}
		if err := tx.Create(&cartItem).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return &cartItem, nil
}

func respondCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errProductUnavailable):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, errInsufficientStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient stock"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
	}
}
