package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"marketplace-backend/config"
	"marketplace-backend/dtos"
	"marketplace-backend/middleware"
	"marketplace-backend/models"
	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errOrderStatusChanged = errors.New("order status changed concurrently")

// OrderNotifier delivers order emails. Sends are fire-and-forget.
type OrderNotifier interface {
	SendOrderConfirmation(conf dtos.OrderConfirmation)
	SendOrderStatusUpdate(email, name, orderNumber string, status models.OrderStatus)
}

type OrderHandler struct {
	DB       *gorm.DB
	Notifier OrderNotifier
	Shop     config.ShopConfig
	Log      zerolog.Logger
}

// ShippingFor returns the shipping fee for a subtotal: free at or above the
// threshold, the flat fee otherwise.
func ShippingFor(shop config.ShopConfig, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(shop.FreeShippingMin) {
		return decimal.Zero
	}
	return shop.ShippingFee
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	email := c.GetString(middleware.ContextUserEmail)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Account has no email address"})
		return
	}

	var req dtos.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	db := h.DB.WithContext(c.Request.Context())

	var cartItems []models.CartItem
	// Product order keeps lock acquisition consistent across concurrent checkouts.
	if err := db.Where("user_id = ?", userID).Order("product_id ASC").Find(&cartItems).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return
	}
	if len(cartItems) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		return
	}

	order := models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		CustomerEmail:   email,
		CustomerName:    req.CustomerName,
		Status:          models.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		Subtotal:        decimal.Zero,
	}

	tx := db.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	// Lock each product row so concurrent checkouts cannot oversell.
	for _, item := range cartItems {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", item.ProductID).First(&product).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "A product in your cart is no longer available"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
			return
		}

		if !product.IsPurchasable(item.Quantity) {
			tx.Rollback()
			if !product.IsActive {
				c.JSON(http.StatusBadRequest, gin.H{"error": product.Name + " is no longer available"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient stock for " + product.Name})
			return
		}

		if err := tx.Model(&product).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity)).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update stock"})
			return
		}

		line := models.OrderItem{
			ProductID:   product.ID,
			VendorID:    product.VendorID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Price:       product.Price,
		}
		order.Subtotal = order.Subtotal.Add(line.LineTotal())
		order.Items = append(order.Items, line)
	}

	order.ShippingFee = ShippingFor(h.Shop, order.Subtotal)
	order.Total = order.Subtotal.Add(order.ShippingFee)

	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		h.Log.Error().Err(err).Str("user_id", userID.String()).Msg("create order")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		h.Log.Error().Err(err).Str("order_id", order.ID.String()).Msg("commit order")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	if loaded, err := h.loadOrder(db, order.ID); err == nil {
		order = *loaded
		h.Notifier.SendOrderConfirmation(dtos.NewOrderConfirmation(&order, h.Shop.StorefrontURL))
	} else {
		h.Log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("reload order for confirmation")
	}

	h.Log.Info().Str("order_id", order.ID.String()).Str("total", order.Total.StringFixed(2)).Msg("order placed")
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orders := []models.Order{}
	if err := h.DB.WithContext(c.Request.Context()).Preload("Items").
		Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, ok := h.ownOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrderConfirmation returns the view the confirmation page and email share.
func (h *OrderHandler) GetOrderConfirmation(c *gin.Context) {
	order, ok := h.ownOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dtos.NewOrderConfirmation(order, h.Shop.StorefrontURL))
}

// GetAllOrders lists every order for the admin console, optionally by ?status=.
func (h *OrderHandler) GetAllOrders(c *gin.Context) {
	query := h.DB.WithContext(c.Request.Context()).Preload("Items")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	orders := []models.Order{}
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus moves an order through the status machine. Cancelling
// returns the reserved stock.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req dtos.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	db := h.DB.WithContext(c.Request.Context())

	var order models.Order
	if err := db.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	if !models.IsValidTransition(order.Status, req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid status transition from %s to %s", order.Status, req.Status),
		})
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// The status read above may be stale; only the request that moves the
		// order out of that status gets to apply the transition.
		result := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, order.Status).
			Update("status", req.Status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errOrderStatusChanged
		}

		if req.Status == models.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
					Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if errors.Is(err, errOrderStatusChanged) {
		c.JSON(http.StatusConflict, gin.H{"error": "Order status was changed by another request"})
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("order_id", order.ID.String()).Msg("update order status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		return
	}
	order.Status = req.Status

	h.Notifier.SendOrderStatusUpdate(order.CustomerEmail, order.CustomerName, order.OrderNumber, order.Status)
	c.JSON(http.StatusOK, order)
}

// ResendConfirmationEmail queues the confirmation email again. It is called
// by internal services, not customers.
func (h *OrderHandler) ResendConfirmationEmail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.loadOrder(h.DB.WithContext(c.Request.Context()), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	h.Notifier.SendOrderConfirmation(dtos.NewOrderConfirmation(order, h.Shop.StorefrontURL))
	c.JSON(http.StatusAccepted, gin.H{"message": "Confirmation email queued"})
}

func (h *OrderHandler) loadOrder(db *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("product_name ASC")
	}).Preload("Items.Vendor").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (h *OrderHandler) ownOrder(c *gin.Context) (*models.Order, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return nil, false
	}

	order, err := h.loadOrder(h.DB.WithContext(c.Request.Context()), id)
	if err != nil || order.UserID != userID {
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return nil, false
	}
	return order, true
}
