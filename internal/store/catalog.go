package store

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"storefront/internal/apperror"
	"storefront/internal/client"
	"storefront/internal/domain"

	"go.uber.org/zap"
)

// CatalogStore holds the product list and performs admin mutations.
// Callers are expected to have passed the admin guard; the backend enforces
// the role. After a mutation the server-returned record is applied to the
// local list.
type CatalogStore struct {
	client *client.Client
	tokens TokenSource
	logger *zap.Logger

	mu         sync.RWMutex
	products   []domain.Product
	err        *apperror.Error
	track      tracker
	listSeq    uint64
	appliedSeq uint64
}

// NewCatalogStore creates an empty catalog store.
func NewCatalogStore(c *client.Client, tokens TokenSource, logger *zap.Logger) *CatalogStore {
	return &CatalogStore{
		client: c,
		tokens: tokens,
		logger: logger,
	}
}

// Products returns a copy of the product list.
func (s *CatalogStore) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, len(s.products))
	copy(products, s.products)
	return products
}

// Loading reports whether any call is in flight.
func (s *CatalogStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track.busy()
}

// Error returns the last failure, or nil.
func (s *CatalogStore) Error() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// ClearError resets the error field.
func (s *CatalogStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

// Dispose drops the list and abandons the results of in-flight calls.
func (s *CatalogStore) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.track.dispose()
	s.products = nil
	s.err = nil
}

func (s *CatalogStore) start(ctx context.Context) ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	return s.track.begin(ctx)
}

func (s *CatalogStore) fail(tk ticket, appErr *apperror.Error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.track.settle(tk) {
		return ErrAbandoned
	}
	s.err = appErr
	return appErr
}

// apply settles tk and, if it is live, runs write under the lock.
func (s *CatalogStore) apply(tk ticket, write func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.track.settle(tk) {
		return ErrAbandoned
	}
	write()
	return nil
}

// FetchProducts replaces the list with the backend's catalog.
func (s *CatalogStore) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "fetchProducts"

	tk := s.start(ctx)
	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.mu.Unlock()

	var products []domain.Product
	if err := s.client.Do(ctx, client.Anonymous(), http.MethodGet, "/products", nil, &products); err != nil {
		s.logger.Warn("Fetching products failed", zap.Error(err))
		return nil, s.fail(tk, failure(op, err, "Failed to fetch products"))
	}

	var result []domain.Product
	err := s.apply(tk, func() {
		if seq > s.appliedSeq {
			s.appliedSeq = seq
			s.products = products
		}
		result = make([]domain.Product, len(s.products))
		copy(result, s.products)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddProduct creates a product. An image is mandatory.
func (s *CatalogStore) AddProduct(ctx context.Context, in domain.ProductInput, image domain.Image) (*domain.Product, error) {
	const op = "addProduct"

	tk := s.start(ctx)

	if err := domain.Validate(in); err != nil {
		return nil, s.fail(tk, invalid(op, err, "Invalid product details"))
	}
	if image.Empty() {
		return nil, s.fail(tk, apperror.New(apperror.KindValidationFailed, op, "Please upload an image", nil))
	}

	token, ok := s.tokens.Token()
	if !ok {
		return nil, s.fail(tk, authRequired(op))
	}

	var product domain.Product
	form := productForm(in, &image)
	if err := s.client.DoMultipart(ctx, client.Bearer(token), http.MethodPost, "/products", form, &product); err != nil {
		s.logger.Warn("Adding product failed", zap.String("name", in.Name), zap.Error(err))
		return nil, s.fail(tk, failure(op, err, "Failed to add product"))
	}

	if err := s.apply(tk, func() { s.upsert(product) }); err != nil {
		return nil, err
	}
	s.logger.Info("Product added", zap.String("product_id", product.ID))
	return &product, nil
}

// UpdateProduct changes a product's metadata. A nil or empty image keeps the
// existing one.
func (s *CatalogStore) UpdateProduct(ctx context.Context, id string, in domain.ProductInput, image *domain.Image) (*domain.Product, error) {
	const op = "updateProduct"

	tk := s.start(ctx)

	if id == "" {
		return nil, s.fail(tk, apperror.New(apperror.KindValidationFailed, op, "Product id is required", nil))
	}
	if err := domain.Validate(in); err != nil {
		return nil, s.fail(tk, invalid(op, err, "Invalid product details"))
	}

	token, ok := s.tokens.Token()
	if !ok {
		return nil, s.fail(tk, authRequired(op))
	}

	if image != nil && image.Empty() {
		image = nil
	}

	var product domain.Product
	form := productForm(in, image)
	path := "/products/" + url.PathEscape(id)
	if err := s.client.DoMultipart(ctx, client.Bearer(token), http.MethodPut, path, form, &product); err != nil {
		s.logger.Warn("Updating product failed", zap.String("product_id", id), zap.Error(err))
		return nil, s.fail(tk, failure(op, err, "Failed to update product"))
	}

	if err := s.apply(tk, func() { s.upsert(product) }); err != nil {
		return nil, err
	}
	s.logger.Info("Product updated", zap.String("product_id", product.ID))
	return &product, nil
}

// DeleteProduct removes a product.
func (s *CatalogStore) DeleteProduct(ctx context.Context, id string) error {
	const op = "deleteProduct"

	tk := s.start(ctx)

	if id == "" {
		return s.fail(tk, apperror.New(apperror.KindValidationFailed, op, "Product id is required", nil))
	}

	token, ok := s.tokens.Token()
	if !ok {
		return s.fail(tk, authRequired(op))
	}

	path := "/products/" + url.PathEscape(id)
	if err := s.client.Do(ctx, client.Bearer(token), http.MethodDelete, path, nil, nil); err != nil {
		s.logger.Warn("Deleting product failed", zap.String("product_id", id), zap.Error(err))
		return s.fail(tk, failure(op, err, "Failed to delete product"))
	}

	if err := s.apply(tk, func() { s.remove(id) }); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// upsert replaces the product with the same ID or appends it. Runs under lock.
func (s *CatalogStore) upsert(product domain.Product) {
	for i := range s.products {
		if s.products[i].ID == product.ID {
			s.products[i] = product
			return
		}
	}
	s.products = append(s.products, product)
}

// remove drops the product with id. Runs under lock.
func (s *CatalogStore) remove(id string) {
	kept := s.products[:0:0]
	for _, p := range s.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.products = kept
}

func productForm(in domain.ProductInput, image *domain.Image) *client.Form {
	form := client.NewForm().
		Field("name", in.Name).
		Field("description", in.Description).
		Field("price", in.Price.String())

	if image != nil {
		filename := image.Filename
		if filename == "" {
			filename = "image"
		}
		form.File("image", filename, image.ContentType, image.Data)
	}
	return form
}
