// Package app assembles the threatlens components from a Config. The API
// server and the CLI share this wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/threatlens/internal/ai"
	"github.com/kiranshivaraju/threatlens/internal/cache"
	"github.com/kiranshivaraju/threatlens/internal/config"
	"github.com/kiranshivaraju/threatlens/internal/github"
	"github.com/kiranshivaraju/threatlens/internal/scan"
	"github.com/kiranshivaraju/threatlens/internal/store"
)

// App holds the wired components. Close releases the store and caches.
type App struct {
	Store store.Store
	// Cache holds classification records.
	Cache cache.Cache
	// Limits holds rate-limit counters. With Redis it is the same client as
	// Cache; in-process it is a separate LRU so record churn during a large
	// scan cannot evict client budgets.
	Limits   cache.Cache
	Service  *ai.AnalysisService
	Reporter *scan.Reporter
}

// New opens the store and cache, creates the AI provider and builds the
// repository pipeline. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// 1. Open result store (runs migrations for Postgres)
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	slog.Info("store opened")

	a := &App{Store: st}

	// 2. Front cache: Redis when configured, in-process LRU otherwise
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		a.Cache = rc
		a.Limits = rc
		if err := rc.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")
	} else {
		mc, err := cache.NewMemoryCache(cfg.Cache.MemorySize)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create memory cache: %w", err)
		}
		a.Cache = mc
		lc, err := cache.NewMemoryCache(cfg.Cache.MemorySize)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create memory cache: %w", err)
		}
		a.Limits = lc
		slog.Info("using in-process cache", "size", cfg.Cache.MemorySize)
	}

	// 3. Create AI provider
	provider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", provider.Name())

	a.Service = ai.NewAnalysisService(provider, a.Store, a.Cache, cfg.Cache.RecordTTL, cfg.AI.InferenceTimeout)

	// 4. GitHub clients and the repository pipeline
	meta, err := github.NewMetadataClient(cfg.GitHub.APIBaseURL, cfg.GitHub.Token, cfg.GitHub.Timeout)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create github client: %w", err)
	}
	fetcher := github.NewFetcher(cfg.GitHub.ArchiveBaseURL, cfg.GitHub.Timeout, cfg.GitHub.MaxArchiveBytes, cfg.GitHub.MaxUnpackedBytes)
	analyzer := scan.NewRepoAnalyzer(a.Service, cfg.Scan.Concurrency)
	a.Reporter = scan.NewReporter(meta, fetcher, a.Service, analyzer)

	return a, nil
}

// Close releases the caches and store. It is safe to call on a partially
// built App.
func (a *App) Close() {
	if a.Limits != nil && a.Limits != a.Cache {
		if err := a.Limits.Close(); err != nil {
			slog.Warn("closing rate limit cache", "error", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			slog.Warn("closing cache", "error", err)
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
