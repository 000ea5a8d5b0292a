// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agora-forum/agora/internal/config"
	"github.com/agora-forum/agora/pkg/errutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		HTTP:        config.HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: 2 * time.Second},
		Metrics:     config.MetricsConfig{Addr: "127.0.0.1:0"},
		Database:    config.DatabaseConfig{URL: "postgres://localhost/agora"},
		Redis:       config.RedisConfig{Addr: "unused"},
		Session:     config.SessionConfig{CookieName: "qid", TTL: time.Hour},
		Reset:       config.ResetConfig{TTL: 5 * time.Minute},
		Frontend:    config.FrontendConfig{URL: "http://localhost:3000"},
		Log:         config.LogConfig{Format: "json"},
	}
}

func fakeDeps(t *testing.T, db pgxmock.PgxPoolIface, mr *miniredis.Miniredis) *ServeDeps {
	t.Helper()
	return &ServeDeps{
		ConnectDatabase: func(context.Context, *config.Config, *slog.Logger) (Database, error) {
			return db, nil
		},
		ConnectRedis: func(context.Context, *config.Config, *slog.Logger) (*redis.Client, error) {
			return redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil
		},
		Migrate: func(string) error {
			t.Fatal("migrations should not run")
			return nil
		},
	}
}

func TestRunServe_ServesUntilCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	db.ExpectClose()

	deps := fakeDeps(t, db, mr)
	ready := make(chan string, 1)
	deps.OnReady = func(addr string) { ready <- addr }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, testConfig(), slog.New(slog.DiscardHandler), deps)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/api/me")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Contains(t, me, "user")
	assert.Nil(t, me["user"])

	resp, err = client.Get("http://" + addr + "/api/route-guard?path=/")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestRunServe_AutoMigrate(t *testing.T) {
	mr := miniredis.RunT(t)
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	db.ExpectClose()

	cfg := testConfig()
	cfg.Database.AutoMigrate = true
	cfg.Metrics.Addr = ""

	deps := fakeDeps(t, db, mr)
	var migrated string
	deps.Migrate = func(url string) error {
		migrated = url
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	deps.OnReady = func(string) { cancel() }

	require.NoError(t, runServe(ctx, cfg, slog.New(slog.DiscardHandler), deps))
	assert.Equal(t, cfg.Database.URL, migrated)
}

func TestRunServe_StartupFailures(t *testing.T) {
	t.Run("migration failure stops before connecting", func(t *testing.T) {
		cfg := testConfig()
		cfg.Database.AutoMigrate = true
		deps := &ServeDeps{
			Migrate: func(string) error { return errors.New("dirty database") },
			ConnectDatabase: func(context.Context, *config.Config, *slog.Logger) (Database, error) {
				t.Fatal("database should not be opened")
				return nil, nil
			},
		}
		err := runServe(context.Background(), cfg, slog.New(slog.DiscardHandler), deps)
		assert.ErrorContains(t, err, "dirty database")
	})

	t.Run("database unavailable", func(t *testing.T) {
		deps := &ServeDeps{
			ConnectDatabase: func(context.Context, *config.Config, *slog.Logger) (Database, error) {
				return nil, errors.New("connection refused")
			},
		}
		err := runServe(context.Background(), testConfig(), slog.New(slog.DiscardHandler), deps)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("listen failure closes stores", func(t *testing.T) {
		mr := miniredis.RunT(t)
		db, err := pgxmock.NewPool()
		require.NoError(t, err)
		db.ExpectClose()

		deps := fakeDeps(t, db, mr)
		deps.Listen = func(string, string) (net.Listener, error) {
			return nil, errors.New("address in use")
		}
		err = runServe(context.Background(), testConfig(), slog.New(slog.DiscardHandler), deps)
		errutil.AssertErrorCode(t, err, "HTTP_LISTEN_FAILED")
		assert.NoError(t, db.ExpectationsWereMet())
	})

	t.Run("incomplete smtp config", func(t *testing.T) {
		mr := miniredis.RunT(t)
		db, err := pgxmock.NewPool()
		require.NoError(t, err)
		db.ExpectClose()

		cfg := testConfig()
		cfg.Mail.SMTPHost = "smtp.example.com"
		err = runServe(context.Background(), cfg, slog.New(slog.DiscardHandler), fakeDeps(t, db, mr))
		errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
	})
}

func TestReadinessCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	check := readinessCheck(db, rdb)

	db.ExpectPing()
	assert.NoError(t, check(context.Background()))

	db.ExpectPing().WillReturnError(errors.New("db down"))
	errutil.AssertErrorCode(t, check(context.Background()), "DB_UNAVAILABLE")

	mr.SetError("LOADING")
	db.ExpectPing()
	errutil.AssertErrorCode(t, check(context.Background()), "REDIS_UNAVAILABLE")
	mr.SetError("")

	assert.NoError(t, db.ExpectationsWereMet())
}

func TestMonitorServerErrors(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		errCh <- errors.New("listener died")
		monitorServerErrors(ctx, cancel, errCh, "test", logger)
		assert.Error(t, ctx.Err())
	})

	t.Run("closed channel leaves context alone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)
		monitorServerErrors(ctx, cancel, errCh, "test", logger)
		assert.NoError(t, ctx.Err())
	})
}
