// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package redisstore provides Redis implementations of the session and
// password reset token stores. Expiry is delegated to Redis key TTLs.
package redisstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// ConnectRetries bounds the start-up ping attempts.
	ConnectRetries uint64
}

// Connect creates a client and pings Redis with exponential back-off until
// it answers or the retry budget is spent.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	retries := opts.ConnectRetries
	if retries == 0 {
		retries = 5
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	backoff := retry.WithMaxRetries(retries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WarnContext(ctx, "redis not ready, retrying", "addr", opts.Addr, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close() //nolint:errcheck // connect error takes precedence
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("addr", opts.Addr).
			Wrap(err)
	}
	return client, nil
}
