package middleware

import (
	"net/http"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the user has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]domain.Role{domain.RoleAdmin}, logger)
}

// RequireRole middleware ensures the user has one of the specified roles
func RequireRole(allowedRoles []domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, authMessages[errMissingHeader])
				return
			}

			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("User role not authorized",
				zap.String("role", string(role)),
				zap.String("path", r.URL.Path),
			)
			if len(allowedRoles) == 1 && allowedRoles[0] == domain.RoleAdmin {
				RespondWithError(w, http.StatusForbidden, "Admin access required")
				return
			}
			RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}
