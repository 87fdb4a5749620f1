package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	CustomerEmail   string          `gorm:"not null" json:"customer_email"`
	CustomerName    string          `json:"customer_name"`
	OrderNumber     string          `gorm:"uniqueIndex;not null" json:"order_number"`
	Status          OrderStatus     `gorm:"default:pending" json:"status"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingFee     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_fee"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	ShippingAddress string          `gorm:"type:text" json:"shipping_address"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	VendorID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"vendor_id"`
	Vendor      *Vendor         `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	ProductName string          `gorm:"not null" json:"product_name"` // snapshot at checkout
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = "ORD" + time.Now().Format("20060102150405") + o.ID.String()[:8]
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal is price times quantity.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AllowedTransitions defines the valid order status state machine.
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// IsValidTransition checks if a status transition is allowed.
func IsValidTransition(from, to OrderStatus) bool {
	allowed, exists := AllowedTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
