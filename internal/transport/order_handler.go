package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderHandler handles the /orders endpoints
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// RegisterRoutes mounts /orders. Checkout accepts guests; listing needs a
// session and status changes need an admin.
func (h *OrderHandler) RegisterRoutes(r chi.Router, auth, optionalAuth, admin func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.With(optionalAuth).Post("/", h.Create)
		r.With(auth).Get("/", h.List)
		r.With(auth, admin).Put("/{id}/status", h.UpdateStatus)
	})
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft domain.OrderDraft
	if err := middleware.DecodeAndValidate(w, r, &draft); err != nil {
		h.logger.Debug("Order validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	order, err := h.orders.Create(r.Context(), userID, draft)
	if err != nil {
		if errors.Is(err, service.ErrUnknownProduct) {
			middleware.RespondWithError(w, http.StatusBadRequest, "One or more products are no longer available")
			return
		}
		h.logger.Error("Order creation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	role, _ := middleware.GetUserRole(r.Context())

	orders, err := h.orders.List(r.Context(), userID, role)
	if err != nil {
		h.logger.Error("Listing orders failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.StatusUpdate
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	if !req.Status.Valid() {
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid order status")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Order not found")
		return
	case errors.Is(err, service.ErrInvalidTransition):
		middleware.RespondWithError(w, http.StatusConflict, "Invalid status transition")
		return
	case err != nil:
		h.logger.Error("Status update failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to update order status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}
