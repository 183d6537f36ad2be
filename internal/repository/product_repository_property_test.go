package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newProduct(name string, cents int64, image []byte) *domain.Product {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: "Description of " + name,
		Price:       decimal.New(cents, -2),
		Image:       image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	forEachDriver(t, func(t *testing.T, set *Set) {
		ctx := context.Background()
		properties := gopter.NewProperties(nil)

		properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
			func(name string, cents int64, image []byte) bool {
				product := newProduct(name, cents, image)
				if err := set.Products.Create(ctx, product); err != nil {
					t.Logf("FAIL: Failed to create product: %v", err)
					return false
				}

				retrieved, err := set.Products.FindByID(ctx, product.ID)
				if err != nil {
					t.Logf("FAIL: Failed to retrieve product: %v", err)
					return false
				}

				if !retrieved.Price.Equal(product.Price) {
					t.Logf("FAIL: Price mismatch. Expected %s, got %s", product.Price, retrieved.Price)
					return false
				}

				return retrieved.ID == product.ID &&
					retrieved.Name == product.Name &&
					retrieved.Description == product.Description &&
					string(retrieved.Image) == string(product.Image)
			},
			gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),
			gen.Int64Range(0, 99_999_999),
			gen.SliceOfN(16, gen.UInt8()),
		))

		properties.TestingRun(t, gopter.ConsoleReporter(false))
	})
}

func TestProductUpdateKeepsImageWhenOmitted(t *testing.T) {
	forEachDriver(t, func(t *testing.T, set *Set) {
		ctx := context.Background()
		product := newProduct("Tea", 350, []byte("jpeg"))
		require.NoError(t, set.Products.Create(ctx, product))

		update := *product
		update.Name = "Green Tea"
		update.Price = decimal.RequireFromString("3.75")
		update.Image = nil
		require.NoError(t, set.Products.Update(ctx, &update))

		got, err := set.Products.FindByID(ctx, product.ID)
		require.NoError(t, err)
		require.Equal(t, "Green Tea", got.Name)
		require.Equal(t, "3.75", got.Price.StringFixed(2))
		require.Equal(t, []byte("jpeg"), got.Image)

		update.Image = []byte("png")
		require.NoError(t, set.Products.Update(ctx, &update))
		got, err = set.Products.FindByID(ctx, product.ID)
		require.NoError(t, err)
		require.Equal(t, []byte("png"), got.Image)
	})
}

func TestProductListAndDelete(t *testing.T) {
	forEachDriver(t, func(t *testing.T, set *Set) {
		ctx := context.Background()
		older := newProduct("Old", 100, nil)
		older.CreatedAt = older.CreatedAt.Add(-time.Hour)
		newer := newProduct("New", 200, nil)
		require.NoError(t, set.Products.Create(ctx, older))
		require.NoError(t, set.Products.Create(ctx, newer))

		list, err := set.Products.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, newer.ID, list[0].ID)

		require.NoError(t, set.Products.Delete(ctx, older.ID))
		require.ErrorIs(t, set.Products.Delete(ctx, older.ID), ErrProductNotFound)
		_, err = set.Products.FindByID(ctx, older.ID)
		require.ErrorIs(t, err, ErrProductNotFound)

		missing := newProduct("Ghost", 1, nil)
		require.ErrorIs(t, set.Products.Update(ctx, missing), ErrProductNotFound)
	})
}
