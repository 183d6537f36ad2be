package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(userID, role string, exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     exp.Unix(),
	})
	s, _ := token.SignedString([]byte(testSecret))
	return s
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest(method, "/"+pathSuffix, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			var body ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &body)
			return w.Code == http.StatusUnauthorized && body.Message == "Authentication required"
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ExpiredTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expired tokens are rejected with 401", prop.ForAll(
		func(userID string, role string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())
			w := serve(handler, "Bearer "+signToken(userID, role, time.Now().Add(-time.Hour)))
			return w.Code == http.StatusUnauthorized
		},
		gen.Identifier(),
		gen.OneConstOf("customer", "admin"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidTokensAllowProcessing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid tokens put user ID and role in the context", prop.ForAll(
		func(userID string, role string) bool {
			var gotID string
			var gotRole domain.Role
			handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = GetUserID(r.Context())
				gotRole, _ = GetUserRole(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			w := serve(handler, "Bearer "+signToken(userID, role, time.Now().Add(time.Hour)))
			return w.Code == http.StatusOK && gotID == userID && gotRole == domain.Role(role)
		},
		gen.Identifier(),
		gen.OneConstOf("customer", "admin"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_MalformedHeadersRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("garbage tokens and missing Bearer prefixes are rejected", prop.ForAll(
		func(token string, prefixed bool) bool {
			header := token
			if prefixed {
				header = "Bearer " + token
			}
			if header == "" {
				header = "Bearer"
			}
			w := serve(AuthMiddleware(testSecret, zap.NewNop())(okHandler()), header)
			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthRejectsForeignSignatureAndMissingClaims(t *testing.T) {
	handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other"))
	require.Equal(t, http.StatusUnauthorized, serve(handler, "Bearer "+foreign).Code)

	noRole := signToken("u1", "", time.Now().Add(time.Hour))
	require.Equal(t, http.StatusUnauthorized, serve(handler, "Bearer "+noRole).Code)
}

func TestOptionalAuth(t *testing.T) {
	var sawUser bool
	handler := OptionalAuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	w := serve(handler, "")
	require.Equal(t, http.StatusCreated, w.Code)
	require.False(t, sawUser)

	w = serve(handler, "Bearer "+signToken("u1", "customer", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, sawUser)

	w = serve(handler, "Bearer nonsense")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	chain := func(h http.Handler) http.Handler {
		return AuthMiddleware(testSecret, zap.NewNop())(RequireAdmin(zap.NewNop())(h))
	}

	w := serve(chain(okHandler()), "Bearer "+signToken("u1", "customer", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusForbidden, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Admin access required", body.Message)

	w = serve(chain(okHandler()), "Bearer "+signToken("a1", "admin", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(RequireAdmin(zap.NewNop())(okHandler()), "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleAllowsListedRoles(t *testing.T) {
	mw := RequireRole([]domain.Role{domain.RoleCustomer, domain.RoleAdmin}, zap.NewNop())
	handler := AuthMiddleware(testSecret, zap.NewNop())(mw(okHandler()))

	for _, role := range []string{"customer", "admin"} {
		require.Equal(t, http.StatusOK, serve(handler, "Bearer "+signToken("u", role, time.Now().Add(time.Hour))).Code)
	}
	require.Equal(t, http.StatusForbidden, serve(handler, "Bearer "+signToken("u", "guest", time.Now().Add(time.Hour))).Code)
}
