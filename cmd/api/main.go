package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/repository"
	"storefront/internal/server"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

// openStorage builds the repository set for the configured driver.
func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (server.Deps, error) {
	switch cfg.Server.StorageDriver {
	case "memory":
		deps := server.Deps{Set: repository.NewMemory()}
		rdb, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, running without rate limiting", zap.Error(err))
			return deps, nil
		}
		deps.Redis = rdb
		return deps, nil

	case "postgres":
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return server.Deps{}, err
		}
		log.Info("Database health check", zap.Any("health", database.Health(ctx, db)))

		if err := database.RunMigrations(db, log); err != nil {
			db.Close()
			return server.Deps{}, err
		}
		log.Info("Database migrations completed successfully")

		rdb, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return server.Deps{}, err
		}
		return server.Deps{Set: repository.NewPostgres(db, rdb), DB: db, Redis: rdb}, nil

	default:
		return server.Deps{}, fmt.Errorf("unknown storage driver %q", cfg.Server.StorageDriver)
	}
}

func main() {
	// A missing .env is fine; the environment and defaults still apply.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting storefront API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Server.StorageDriver),
	)

	deps, err := openStorage(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}

	srv := server.NewServer(cfg, log, deps)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
