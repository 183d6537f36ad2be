package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 1
	case OrderStatusShipped:
		return 2
	case OrderStatusDelivered:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	return s.rank() > 0
}

// CanAdvanceTo reports whether moving from s to next keeps status monotonic.
// Re-applying the current status is allowed.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	return s.Valid() && next.Valid() && next.rank() >= s.rank()
}

// OrderItem is a priced line of a stored order.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Order is an order as held by the backend. TotalAmount is computed by the
// backend and is read-only on the client.
type Order struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId,omitempty"`
	CustomerName string          `json:"customerName"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address"`
	Items        []OrderItem     `json:"items"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Customer holds the contact fields of a checkout.
type Customer struct {
	Name    string `json:"customerName" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
}

// OrderLine is an unpriced {productId, quantity} pair.
type OrderLine struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// OrderDraft is the order submission body.
type OrderDraft struct {
	Customer
	Items []OrderLine `json:"items" validate:"required,min=1,dive"`
}

// NewOrderDraft builds a submission from customer fields and a cart snapshot.
func NewOrderDraft(customer Customer, snapshot CartSnapshot) OrderDraft {
	return OrderDraft{
		Customer: customer,
		Items:    snapshot.Lines(),
	}
}

// StatusUpdate is the body of an order status change.
type StatusUpdate struct {
	Status OrderStatus `json:"status" validate:"required"`
}
