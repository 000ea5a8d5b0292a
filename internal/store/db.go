// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolOptions tunes Connect.
type PoolOptions struct {
	// MaxConns overrides the pgxpool default when positive.
	MaxConns int32

	// ConnectRetries is how many times a failed ping is retried.
	ConnectRetries uint64

	// RetryBase is the first backoff interval.
	RetryBase time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.ConnectRetries == 0 {
		o.ConnectRetries = 5
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 200 * time.Millisecond
	}
	return o
}

// Connect opens a pool and waits until the database answers a ping.
func Connect(ctx context.Context, databaseURL string, opts PoolOptions, logger *slog.Logger) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(opts.ConnectRetries, retry.NewExponential(opts.RetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}

	logger.InfoContext(ctx, "connected to database",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database)
	return pool, nil
}
