// Package main is the entrypoint for the meshcover API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/meshcover/internal/api"
	"github.com/kiranshivaraju/meshcover/internal/api/handler"
	mw "github.com/kiranshivaraju/meshcover/internal/api/middleware"
	"github.com/kiranshivaraju/meshcover/internal/api/response"
	"github.com/kiranshivaraju/meshcover/internal/catalog"
	"github.com/kiranshivaraju/meshcover/internal/config"
	"github.com/kiranshivaraju/meshcover/internal/elevation"
	"github.com/kiranshivaraju/meshcover/internal/kv"
	"github.com/kiranshivaraju/meshcover/internal/maintenance"
	"github.com/kiranshivaraju/meshcover/internal/registry"
	"github.com/kiranshivaraju/meshcover/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "batch_cap", cfg.Maintenance.BatchCap)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Connect to the key-value store
	kvStore, err := kv.NewRedisStore(cfg.Redis.URL, cfg.Redis.ListPageSize)
	if err != nil {
		return fmt.Errorf("create kv store: %w", err)
	}
	defer kvStore.Close()

	if err := kvStore.Ping(ctx); err != nil {
		return fmt.Errorf("ping kv store: %w", err)
	}
	slog.Info("kv store connected")

	// 5. Build services
	pgStore := store.NewPostgresStore(pool)
	elev := elevation.NewHTTPClient(cfg.Elevation.BaseURL, cfg.Elevation.Timeout)

	coverage := kvStore.Namespace(kv.Coverage)
	repeaters := kvStore.Namespace(kv.Repeaters)

	maint := maintenance.NewService(maintenance.Namespaces{
		Coverage:  coverage,
		Repeaters: repeaters,
		Samples:   kvStore.Namespace(kv.Samples),
		Archive:   kvStore.Namespace(kv.Archive),
	}, pgStore, cfg.Maintenance)
	reg := registry.New(pgStore, elev)
	cat := catalog.New(coverage, repeaters, pgStore, cfg.Maintenance.DeleteConcurrency)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(kvStore, cfg.RateLimit.RequestsPerMinute),

		HealthHandler:  healthHandler(pgStore, kvStore),
		ListCoverage:   handler.NewListCoverageHandler(cat),
		ListRepeaters:  handler.NewListRepeatersHandler(cat),
		ListSamples:    handler.NewListSamplesHandler(cat),
		PutRepeater:    handler.NewPutRepeaterHandler(reg),
		CleanUpHandler: handler.NewCleanUpHandler(maint),
		MigrateHandler: handler.NewMigrateHandler(maint),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a full repeater sweep can run long
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and kv store connectivity.
func healthHandler(s store.Store, k pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"kv":       "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := k.Ping(r.Context()); err != nil {
			checks["kv"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["kv"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
