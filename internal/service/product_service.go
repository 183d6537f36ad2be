package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxImageDimension bounds the longer side of stored product images.
	MaxImageDimension = 1024
	imageQuality      = 85
)

var (
	ErrImageRequired = errors.New("product image is required")
	ErrInvalidImage  = errors.New("product image could not be decoded")
)

// ProductService manages the catalog.
type ProductService interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, input domain.ProductInput, image domain.Image) (*domain.Product, error)
	// Update keeps the stored image when image is nil or empty.
	Update(ctx context.Context, id string, input domain.ProductInput, image *domain.Image) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type productService struct {
	products repository.ProductRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(products repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{
		products: products,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *productService) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *productService) Create(ctx context.Context, input domain.ProductInput, image domain.Image) (*domain.Product, error) {
	if image.Empty() {
		return nil, ErrImageRequired
	}

	data, err := normalizeImage(image.Data)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Image:       data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID), zap.Int("image_bytes", len(data)))
	return product, nil
}

func (s *productService) Update(ctx context.Context, id string, input domain.ProductInput, image *domain.Image) (*domain.Product, error) {
	current, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	current.Name = strings.TrimSpace(input.Name)
	current.Description = strings.TrimSpace(input.Description)
	current.Price = input.Price
	current.UpdatedAt = s.now().UTC()

	// a nil image tells the repository to keep the stored one
	next := *current
	next.Image = nil
	if image != nil && !image.Empty() {
		if next.Image, err = normalizeImage(image.Data); err != nil {
			return nil, err
		}
		current.Image = next.Image
	}

	if err := s.products.Update(ctx, &next); err != nil {
		return nil, err
	}

	s.logger.Info("Product updated", zap.String("product_id", id))
	return current, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// normalizeImage decodes any supported format, applies EXIF orientation,
// bounds the size and re-encodes as JPEG.
func normalizeImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := img.Bounds()
	if b.Dx() > MaxImageDimension || b.Dy() > MaxImageDimension {
		img = imaging.Fit(img, MaxImageDimension, MaxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(imageQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
