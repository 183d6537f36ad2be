package transport

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, api *testAPI, id, price string) {
	t.Helper()
	err := api.set.Products.Create(context.Background(), &domain.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
}

func draftFor(lines ...domain.OrderLine) domain.OrderDraft {
	return domain.OrderDraft{
		Customer: domain.Customer{Name: "Grace", Email: "grace@example.com", Phone: "555-0100", Address: "1 Harbour St"},
		Items:    lines,
	}
}

func TestCreateOrderPricesFromCatalog(t *testing.T) {
	api := newTestAPI(t)
	seedProduct(t, api, "p1", "9.99")
	seedProduct(t, api, "p2", "0.01")

	w := api.do(t, http.MethodPost, "/orders", "", draftFor(
		domain.OrderLine{ProductID: "p1", Quantity: 2},
		domain.OrderLine{ProductID: "p2", Quantity: 3},
	))
	require.Equal(t, http.StatusCreated, w.Code)

	var order domain.Order
	decodeBody(t, w, &order)
	require.NotEmpty(t, order.ID)
	require.Empty(t, order.UserID)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, "20.01", order.TotalAmount.String())
	require.Len(t, order.Items, 2)
}

func TestCreateOrderRejectsBadDrafts(t *testing.T) {
	api := newTestAPI(t)
	seedProduct(t, api, "p1", "9.99")

	w := api.do(t, http.MethodPost, "/orders", "", draftFor())
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/orders", "", draftFor(domain.OrderLine{ProductID: "p1", Quantity: 0}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/orders", "", draftFor(domain.OrderLine{ProductID: "gone", Quantity: 1}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "One or more products are no longer available", messageOf(t, w))
}

func TestListOrdersIsScopedByRole(t *testing.T) {
	api := newTestAPI(t)
	seedProduct(t, api, "p1", "5")
	line := domain.OrderLine{ProductID: "p1", Quantity: 1}

	ada := tokenFor(t, "user-ada", domain.RoleCustomer)
	bob := tokenFor(t, "user-bob", domain.RoleCustomer)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/orders", ada, draftFor(line)).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/orders", bob, draftFor(line)).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/orders", "", draftFor(line)).Code)

	w := api.do(t, http.MethodGet, "/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var mine []domain.Order
	w = api.do(t, http.MethodGet, "/orders", ada, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &mine)
	require.Len(t, mine, 1)
	require.Equal(t, "user-ada", mine[0].UserID)

	var all []domain.Order
	w = api.do(t, http.MethodGet, "/orders", tokenFor(t, "root", domain.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &all)
	require.Len(t, all, 3)
}

func TestUpdateOrderStatus(t *testing.T) {
	api := newTestAPI(t)
	seedProduct(t, api, "p1", "5")
	admin := tokenFor(t, "root", domain.RoleAdmin)

	w := api.do(t, http.MethodPost, "/orders", "", draftFor(domain.OrderLine{ProductID: "p1", Quantity: 1}))
	require.Equal(t, http.StatusCreated, w.Code)
	var order domain.Order
	decodeBody(t, w, &order)
	path := "/orders/" + order.ID + "/status"

	w = api.do(t, http.MethodPut, path, tokenFor(t, "ada", domain.RoleCustomer), domain.StatusUpdate{Status: domain.OrderStatusShipped})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPut, path, admin, domain.StatusUpdate{Status: "lost"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPut, path, admin, domain.StatusUpdate{Status: domain.OrderStatusShipped})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &order)
	require.Equal(t, domain.OrderStatusShipped, order.Status)

	w = api.do(t, http.MethodPut, path, admin, domain.StatusUpdate{Status: domain.OrderStatusPending})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "Invalid status transition", messageOf(t, w))

	w = api.do(t, http.MethodPut, "/orders/missing/status", admin, domain.StatusUpdate{Status: domain.OrderStatusShipped})
	require.Equal(t, http.StatusNotFound, w.Code)
}
