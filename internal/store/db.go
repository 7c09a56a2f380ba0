package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/threatlens/internal/config"
)

func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Open selects the backend from the scheme of cfg.URL, prepares the schema and
// returns a ready Store.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch {
	case isPostgresURL(cfg.URL):
		if err := RunMigrations(cfg.URL); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	case strings.HasPrefix(cfg.URL, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(cfg.URL, "sqlite://"))
	case strings.HasPrefix(cfg.URL, "file:"):
		return NewSQLiteStore(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database URL scheme in %q", redactURL(cfg.URL))
	}
}

func isPostgresURL(u string) bool {
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// redactURL drops everything after the scheme so credentials never reach logs.
func redactURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		return u[:i+3] + "..."
	}
	return "..."
}
