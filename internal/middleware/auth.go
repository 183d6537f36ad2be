package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

var (
	errMissingHeader = errors.New("missing authorization header")
	errBadHeader     = errors.New("invalid authorization header format")
	errTokenExpired  = errors.New("token expired")
	errInvalidToken  = errors.New("invalid token")
)

// authMessages are the user-facing texts of the auth failures.
var authMessages = map[error]string{
	errMissingHeader: "Authentication required",
	errBadHeader:     "Invalid authorization header format",
	errTokenExpired:  "Session expired, please log in again",
	errInvalidToken:  "Invalid token",
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, logger, false)
}

// OptionalAuthMiddleware lets anonymous requests through but still rejects
// a malformed or invalid token.
func OptionalAuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, logger, true)
}

func authenticate(jwtSecret string, logger *zap.Logger, optional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if optional && r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, role, err := parseBearer(r.Header.Get("Authorization"), jwtSecret)
			if err != nil {
				logger.Debug("Authentication failed", zap.Error(err), zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, authMessages[err])
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRoleKey, role)

			logger.Debug("User authenticated",
				zap.String("user_id", userID),
				zap.String("role", string(role)),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(header, jwtSecret string) (string, domain.Role, error) {
	if header == "" {
		return "", "", errMissingHeader
	}

	scheme, tokenString, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || tokenString == "" {
		return "", "", errBadHeader
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", errTokenExpired
		}
		return "", "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", errInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if userID == "" || role == "" {
		return "", "", errInvalidToken
	}

	return userID, domain.Role(role), nil
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (domain.Role, bool) {
	role, ok := ctx.Value(UserRoleKey).(domain.Role)
	return role, ok
}
