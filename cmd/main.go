// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/cache"
	"github.com/Shivanand-hulikatti/course-registration/internal/clock"
	"github.com/Shivanand-hulikatti/course-registration/internal/config"
	"github.com/Shivanand-hulikatti/course-registration/internal/database"
	"github.com/Shivanand-hulikatti/course-registration/internal/handler"
	"github.com/Shivanand-hulikatti/course-registration/internal/logger"
	"github.com/Shivanand-hulikatti/course-registration/internal/repository"
	"github.com/Shivanand-hulikatti/course-registration/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/course-registration/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, dotenvLoaded, err := config.Load(".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	zl.Info("Starting course registration service",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.Store),
		zap.Bool("dotenv", dotenvLoaded),
	)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Service stopped with error", zap.Error(err))
	}
	zl.Info("Server stopped")
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx := context.Background()

	// ── 1. Open the store ────────────────────────────────────────────────
	store, closeStore, err := openStore(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.CacheEnabled() {
		client, err := cache.NewClient(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		store = cache.NewCourseCache(store, client, cfg.CourseCacheTTL, zl)
		zl.Info("Course cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CourseCacheTTL))
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	svc := service.NewRegistrationService(store, clock.System{}, zl)
	h := handler.NewRegistrationHandler(svc, zl)

	// ── 3. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(h, zl),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		zl.Info("Shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// openStore returns the configured store and a function that releases it.
func openStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (service.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL}, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		version, err := database.MigratePool(ctx, pool, zl)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		zl.Info("Connected to PostgreSQL", zap.Int64("schema_version", version))
		return repository.NewStore(pool), pool.Close, nil

	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		zl.Info("Opened SQLite store", zap.String("path", cfg.SQLitePath))
		return s, func() { _ = s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
