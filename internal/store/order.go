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

// requestFor picks the request variant from the caller's view of the session.
func requestFor(tokens TokenSource) client.Request {
	if token, ok := tokens.Token(); ok {
		return client.Bearer(token)
	}
	return client.Anonymous()
}

// OrderStore submits orders and holds the admin order list.
//
// Calls are not serialised against each other: two CreateOrder calls issued
// before either resolves both reach the backend and may create two orders.
// Callers that need at-most-once submission must gate on Loading.
//
// Any successful status change invalidates the whole list, which is then
// refetched; the backend is the only source of derived fields.
type OrderStore struct {
	client *client.Client
	tokens TokenSource
	logger *zap.Logger

	mu           sync.RWMutex
	orders       []domain.Order
	lastOrder    *domain.Order
	orderSuccess bool
	err          *apperror.Error
	track        tracker
	listSeq      uint64
	appliedSeq   uint64
}

// NewOrderStore creates an order store reading tokens from tokens.
func NewOrderStore(c *client.Client, tokens TokenSource, logger *zap.Logger) *OrderStore {
	return &OrderStore{
		client: c,
		tokens: tokens,
		logger: logger,
	}
}

// Orders returns a copy of the last fetched order list.
func (s *OrderStore) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, len(s.orders))
	copy(orders, s.orders)
	return orders
}

// LastOrder returns the order stored by the most recent successful
// CreateOrder, or nil.
func (s *OrderStore) LastOrder() *domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastOrder == nil {
		return nil
	}
	order := *s.lastOrder
	return &order
}

// OrderSuccess reports the one-shot success flag set by CreateOrder.
func (s *OrderStore) OrderSuccess() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderSuccess
}

// ResetOrderSuccess clears the success flag after the caller has acted on it.
func (s *OrderStore) ResetOrderSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderSuccess = false
}

// Loading reports whether any call is in flight.
func (s *OrderStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track.busy()
}

// Error returns the last failure, or nil.
func (s *OrderStore) Error() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// ClearError resets the error field.
func (s *OrderStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

// Dispose drops held state and abandons the results of in-flight calls.
func (s *OrderStore) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.track.dispose()
	s.orders = nil
	s.lastOrder = nil
	s.orderSuccess = false
	s.err = nil
}

// fail records appErr if tk is still live. It returns the error the caller
// should see.
func (s *OrderStore) fail(tk ticket, appErr *apperror.Error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.track.settle(tk) {
		return ErrAbandoned
	}
	s.err = appErr
	return appErr
}

// CreateOrder submits draft. A bearer token is attached only when the
// session holds one, so guests can check out. The returned order carries
// the backend's totals unchanged.
func (s *OrderStore) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	const op = "createOrder"

	s.mu.Lock()
	tk := s.track.begin(ctx)
	s.err = nil
	s.orderSuccess = false
	s.mu.Unlock()

	if err := domain.Validate(draft); err != nil {
		return nil, s.fail(tk, invalid(op, err, "Invalid order details"))
	}

	auth := requestFor(s.tokens)

	var order domain.Order
	if err := s.client.Do(ctx, auth, http.MethodPost, "/orders", draft, &order); err != nil {
		s.logger.Warn("Order submission failed", zap.Bool("authorized", auth.Authorized()), zap.Error(err))
		return nil, s.fail(tk, failure(op, err, "Failed to create order"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.track.settle(tk) {
		return nil, ErrAbandoned
	}
	s.lastOrder = &order
	s.orderSuccess = true
	s.err = nil

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("total", order.TotalAmount.String()),
		zap.Bool("authorized", auth.Authorized()),
	)

	created := order
	return &created, nil
}

// FetchOrders replaces the order list with the backend's. Without a token it
// fails with AuthRequired and makes no request.
func (s *OrderStore) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	const op = "fetchOrders"

	s.mu.Lock()
	tk := s.track.begin(ctx)
	s.err = nil
	s.listSeq++
	seq := s.listSeq
	s.mu.Unlock()

	token, ok := s.tokens.Token()
	if !ok {
		return nil, s.fail(tk, authRequired(op))
	}

	return s.loadOrders(ctx, tk, seq, token)
}

// loadOrders fetches the list under tk and settles it. The list is written
// only while tk is live and seq is newer than the applied one.
func (s *OrderStore) loadOrders(ctx context.Context, tk ticket, seq uint64, token string) ([]domain.Order, error) {
	var orders []domain.Order
	if err := s.client.Do(ctx, client.Bearer(token), http.MethodGet, "/orders", nil, &orders); err != nil {
		s.logger.Warn("Fetching orders failed", zap.Error(err))
		return nil, s.fail(tk, failure("fetchOrders", err, "Failed to fetch orders"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.track.settle(tk) {
		return nil, ErrAbandoned
	}
	// A slower, older fetch must not overwrite a newer list.
	if seq > s.appliedSeq {
		s.appliedSeq = seq
		s.orders = orders
	}

	result := make([]domain.Order, len(s.orders))
	copy(result, s.orders)
	return result, nil
}

// UpdateOrderStatus writes a new status and then refetches the whole list.
// A refetch failure is returned even though the status write succeeded.
func (s *OrderStore) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	const op = "updateOrderStatus"

	s.mu.Lock()
	tk := s.track.begin(ctx)
	s.err = nil
	s.mu.Unlock()

	if orderID == "" || !status.Valid() {
		return s.fail(tk, apperror.New(apperror.KindValidationFailed, op, "Invalid order status", nil))
	}

	token, ok := s.tokens.Token()
	if !ok {
		return s.fail(tk, authRequired(op))
	}

	path := "/orders/" + url.PathEscape(orderID) + "/status"
	body := domain.StatusUpdate{Status: status}
	if err := s.client.Do(ctx, client.Bearer(token), http.MethodPut, path, body, nil); err != nil {
		s.logger.Warn("Order status update failed",
			zap.String("order_id", orderID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return s.fail(tk, failure(op, err, "Failed to update order status"))
	}

	s.logger.Info("Order status updated", zap.String("order_id", orderID), zap.String("status", string(status)))

	// The refetch runs under this call's ticket so a dispose or cancel
	// during either request keeps the list untouched.
	s.mu.Lock()
	if !s.track.live(tk) {
		s.track.settle(tk)
		s.mu.Unlock()
		return ErrAbandoned
	}
	s.listSeq++
	seq := s.listSeq
	s.mu.Unlock()

	_, err := s.loadOrders(ctx, tk, seq, token)
	return err
}
