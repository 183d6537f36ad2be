package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a product selected into the cart.
type CartItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns unit price times quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums the subtotals of items. Decimal addition is exact, so the
// result does not depend on item order.
func Total(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// CartSnapshot is an immutable copy of the cart taken at checkout.
type CartSnapshot struct {
	Items      []CartItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	CapturedAt time.Time       `json:"capturedAt"`
}

// Lines returns the {productId, quantity} pairs submitted with an order.
// Unit prices are deliberately left out: the backend prices the order.
func (s CartSnapshot) Lines() []OrderLine {
	lines := make([]OrderLine, 0, len(s.Items))
	for _, item := range s.Items {
		lines = append(lines, OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
