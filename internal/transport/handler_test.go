package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type mailbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *mailbox) SendVerification(_ context.Context, user *domain.User, token string) error {
	m.put("verify:"+user.Email, token)
	return nil
}

func (m *mailbox) SendPasswordReset(_ context.Context, user *domain.User, token string) error {
	m.put("reset:"+user.Email, token)
	return nil
}

func (m *mailbox) put(key, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = token
}

func (m *mailbox) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[key]
}

type testAPI struct {
	router http.Handler
	set    *repository.Set
	mail   *mailbox
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	set := repository.NewMemory()
	mail := &mailbox{tokens: make(map[string]string)}

	auth := service.NewAuthService(set.Users, set.Tokens, mail, testSecret, service.AuthOptions{}, logger)
	orders := service.NewOrderService(set.Orders, set.Products, logger)
	products := service.NewProductService(set.Products, logger)

	requireAuth := middleware.AuthMiddleware(testSecret, logger)
	optionalAuth := middleware.OptionalAuthMiddleware(testSecret, logger)
	admin := middleware.RequireAdmin(logger)
	noLimit := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	r.Use(middleware.ErrorHandlingMiddleware(logger))
	NewAuthHandler(auth, logger).RegisterRoutes(r, noLimit)
	NewOrderHandler(orders, logger).RegisterRoutes(r, requireAuth, optionalAuth, admin)
	NewProductHandler(products, logger).RegisterRoutes(r, requireAuth, admin)

	return &testAPI{router: r, set: set, mail: mail}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	claims := service.Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func messageOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, w, &body)
	return body.Message
}
