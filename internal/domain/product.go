package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       []byte          `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// HasImage reports whether the product carries an image payload.
func (p Product) HasImage() bool {
	return len(p.Image) > 0
}

// ProductInput holds the metadata fields of a catalog mutation.
type ProductInput struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
}

// Image is a binary upload attached to a product mutation.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}
