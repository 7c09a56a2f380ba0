// Package main is the entrypoint for the threatlens API server.
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

	"github.com/kiranshivaraju/threatlens/internal/api"
	"github.com/kiranshivaraju/threatlens/internal/api/handler"
	mw "github.com/kiranshivaraju/threatlens/internal/api/middleware"
	"github.com/kiranshivaraju/threatlens/internal/app"
	"github.com/kiranshivaraju/threatlens/internal/config"
)

const (
	shutdownTimeout = 30 * time.Second
	// writeTimeout covers a full repository scan.
	writeTimeout = 10 * time.Minute
)

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
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Store, cache, provider and repository pipeline
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// 3. Build router with dependencies
	auth := mw.NewAuth(cfg.Server.APIKeyHash)
	if !auth.Enabled() {
		slog.Warn("THREATLENS_API_KEY_HASH is not set, API is open")
	}

	router := api.NewRouter(newDependencies(cfg, a, auth))

	// 4. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
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

func newDependencies(cfg *config.Config, a *app.App, auth *mw.Auth) api.Dependencies {
	return api.Dependencies{
		Auth:           auth,
		RateLimit:      mw.NewRateLimit(a.Limits, cfg.Server.RequestsPerMinute),
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,

		HealthHandler:  handler.NewHealthHandler(a.Store, a.Cache),
		AnalyzeHandler: handler.NewAnalyzeHandler(a.Service, a.Reporter),
		StatsHandler:   handler.NewStatsHandler(a.Store),
	}
}
