package dtos

import (
	"time"

	"marketplace-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ConfirmationItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	VendorName  string          `json:"vendor_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderConfirmation is the view shared by the confirmation page and the
// confirmation email.
type OrderConfirmation struct {
	OrderID         uuid.UUID          `json:"order_id"`
	OrderNumber     string             `json:"order_number"`
	Status          models.OrderStatus `json:"status"`
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	ShippingAddress string             `json:"shipping_address"`
	PlacedAt        time.Time          `json:"placed_at"`
	Items           []ConfirmationItem `json:"items"`
	ItemCount       int                `json:"item_count"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	ShippingFee     decimal.Decimal    `json:"shipping_fee"`
	Total           decimal.Decimal    `json:"total"`
	OrderURL        string             `json:"order_url"`
}

// NewOrderConfirmation assembles the confirmation view. The order must have
// Items and Items.Vendor preloaded; a missing vendor renders as an empty name.
func NewOrderConfirmation(o *models.Order, storefrontURL string) OrderConfirmation {
	conf := OrderConfirmation{
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		ShippingAddress: o.ShippingAddress,
		PlacedAt:        o.CreatedAt,
		Items:           make([]ConfirmationItem, 0, len(o.Items)),
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Total:           o.Total,
	}
	if storefrontURL != "" {
		conf.OrderURL = storefrontURL + "/orders/" + o.ID.String()
	}

	for i := range o.Items {
		item := &o.Items[i]
		vendorName := ""
		if item.Vendor != nil {
			vendorName = item.Vendor.Name
		}
		conf.Items = append(conf.Items, ConfirmationItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			VendorName:  vendorName,
			Quantity:    item.Quantity,
			UnitPrice:   item.Price,
			LineTotal:   item.LineTotal(),
		})
		conf.ItemCount += item.Quantity
	}
	return conf
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required,min=5,max=500"`
	CustomerName    string `json:"customer_name" binding:"required,max=100"`
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,oneof=pending confirmed shipped delivered cancelled"`
}
