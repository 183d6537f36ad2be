package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownProduct    = errors.New("order references an unknown product")
)

// OrderService prices, stores and advances orders.
type OrderService interface {
	// Create prices every line from the catalog; client-side prices are never trusted.
	Create(ctx context.Context, userID string, draft domain.OrderDraft) (*domain.Order, error)
	// List returns every order for admins and the caller's own otherwise.
	List(ctx context.Context, userID string, role domain.Role) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type orderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository, logger *zap.Logger) OrderService {
	return &orderService{
		orders:   orders,
		products: products,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *orderService) Create(ctx context.Context, userID string, draft domain.OrderDraft) (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(draft.Items))
	total := decimal.Zero

	for _, line := range draft.Items {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, line.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to price order line: %w", err)
		}

		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order := &domain.Order{
		ID:           uuid.NewString(),
		UserID:       userID,
		CustomerName: strings.TrimSpace(draft.Name),
		Email:        strings.TrimSpace(draft.Email),
		Phone:        strings.TrimSpace(draft.Phone),
		Address:      strings.TrimSpace(draft.Address),
		Items:        items,
		TotalAmount:  total,
		Status:       domain.OrderStatusPending,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total", total.StringFixed(2)),
	)
	return order, nil
}

func (s *orderService) List(ctx context.Context, userID string, role domain.Role) ([]*domain.Order, error) {
	if role == domain.RoleAdmin {
		userID = ""
	}
	orders, err := s.orders.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanAdvanceTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}

	if order.Status != status {
		err := s.orders.UpdateStatus(ctx, id, order.Status, status)
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info("Order status updated",
			zap.String("order_id", id),
			zap.String("from", string(order.Status)),
			zap.String("to", string(status)),
		)
		order.Status = status
	}

	return order, nil
}
