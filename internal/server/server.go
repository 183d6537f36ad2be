package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the storage handles the server routes over. DB and Redis may be
// nil when running on the memory driver.
type Deps struct {
	Set    *repository.Set
	DB     *sql.DB
	Redis  *redis.Client
	Mailer service.Mailer
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Deps
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if deps.Mailer == nil {
		deps.Mailer = service.LogMailer{BaseURL: frontendURL(cfg), Logger: logger.Named("mailer")}
	}

	s := &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      s.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	cfg, logger, set := s.config, s.logger, s.deps.Set

	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSOrigins, cfg.Server.Env == "development"))

	router.Get("/health", s.health)

	authService := service.NewAuthService(set.Users, set.Tokens, s.deps.Mailer, cfg.JWT.Secret, service.AuthOptions{
		AccessTokenExpiration: time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		VerificationTTL:       cfg.Auth.VerificationTTL,
		PasswordResetTTL:      cfg.Auth.PasswordResetTTL,
	}, logger.Named("auth"))
	orderService := service.NewOrderService(set.Orders, set.Products, logger.Named("orders"))
	productService := service.NewProductService(set.Products, logger.Named("products"))

	if s.deps.Redis == nil {
		logger.Warn("No redis client, auth rate limiting disabled")
	}
	rateLimit := custommiddleware.RateLimitMiddleware(s.deps.Redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Auth.RateLimit,
		Window:            cfg.Auth.RateWindow,
		KeyPrefix:         "ratelimit:auth",
	}, logger)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	optionalAuth := custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, logger)
	requireAdmin := custommiddleware.RequireAdmin(logger)

	transport.NewAuthHandler(authService, logger).RegisterRoutes(router, rateLimit)
	transport.NewProductHandler(productService, logger).RegisterRoutes(router, authMiddleware, requireAdmin)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, authMiddleware, optionalAuth, requireAdmin)

	return router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"storage": s.config.Server.StorageDriver,
	}
	if s.deps.DB != nil {
		db := database.Health(r.Context(), s.deps.DB)
		status["database"] = db
		if db["status"] != "up" {
			status["status"] = "degraded"
		}
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Ping(r.Context()).Err(); err != nil {
			status["redis"] = "down"
			status["status"] = "degraded"
		} else {
			status["redis"] = "up"
		}
	}
	custommiddleware.RespondWithJSON(w, http.StatusOK, status)
}

// frontendURL is where emailed links point: the first allowed CORS origin.
func frontendURL(cfg *config.Config) string {
	if len(cfg.Server.CORSOrigins) > 0 {
		return cfg.Server.CORSOrigins[0]
	}
	return cfg.API.BaseURL
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
