package store

import (
	"sync"
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// CartStore holds the session-local cart. It never talks to the backend;
// its contents leave the process only through OrderStore at checkout.
//
// Quantities are taken as given. Rejecting non-positive quantities is the
// caller's job.
type CartStore struct {
	now func() time.Time

	mu    sync.RWMutex
	items []domain.CartItem
}

// NewCartStore creates an empty cart.
func NewCartStore() *CartStore {
	return &CartStore{now: time.Now}
}

func (c *CartStore) indexOf(productID string) int {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem inserts product, or increases its quantity if already present.
func (c *CartStore) AddItem(product domain.Product, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(product.ID); i >= 0 {
		c.items[i].Quantity += quantity
		return
	}
	c.items = append(c.items, domain.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
	})
}

// RemoveItem drops the entry for productID, if any.
func (c *CartStore) RemoveItem(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(productID); i >= 0 {
		c.items = append(c.items[:i:i], c.items[i+1:]...)
	}
}

// UpdateQuantity sets the quantity of an existing entry and reports whether
// it was found.
func (c *CartStore) UpdateQuantity(productID string, quantity int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.items[i].Quantity = quantity
	return true
}

// ResetCart empties the cart in one step.
func (c *CartStore) ResetCart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the cart in insertion order.
func (c *CartStore) Items() []domain.CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)
	return items
}

// Len returns the number of distinct products in the cart.
func (c *CartStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ComputeTotal sums unit price times quantity over the current items.
func (c *CartStore) ComputeTotal() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.Total(c.items)
}

// Snapshot returns an immutable copy of the cart for checkout.
func (c *CartStore) Snapshot() domain.CartSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)
	return domain.CartSnapshot{
		Items:      items,
		Total:      domain.Total(items),
		CapturedAt: c.now(),
	}
}
