// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/agora-forum/agora/internal/auth"
	authpg "github.com/agora-forum/agora/internal/auth/postgres"
	"github.com/agora-forum/agora/internal/auth/redisstore"
	"github.com/agora-forum/agora/internal/config"
	"github.com/agora-forum/agora/internal/logging"
	"github.com/agora-forum/agora/internal/mail"
	"github.com/agora-forum/agora/internal/observability"
	"github.com/agora-forum/agora/internal/post"
	postpg "github.com/agora-forum/agora/internal/post/postgres"
	"github.com/agora-forum/agora/internal/store"
	"github.com/agora-forum/agora/internal/web"
)

const serviceName = "agora"

// Database is the subset of *pgxpool.Pool used by the server.
type Database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConnectDatabase opens the PostgreSQL pool.
	// Default: store.Connect
	ConnectDatabase func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Database, error)

	// ConnectRedis opens the Redis client.
	// Default: redisstore.Connect
	ConnectRedis func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error)

	// Migrate applies pending migrations when auto-migrate is enabled.
	// Default: store.Migrator.Up
	Migrate func(databaseURL string) error

	// Listen binds the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)

	// OnReady is called with the API address once requests are served.
	OnReady func(apiAddr string)
}

func (d *ServeDeps) withDefaults() {
	if d.ConnectDatabase == nil {
		d.ConnectDatabase = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Database, error) {
			return store.Connect(ctx, cfg.Database.URL, store.PoolOptions{MaxConns: cfg.Database.MaxConns}, logger)
		}
	}
	if d.ConnectRedis == nil {
		d.ConnectRedis = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
			return redisstore.Connect(ctx, redisstore.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, logger)
		}
	}
	if d.Migrate == nil {
		d.Migrate = migrateUp
	}
	if d.Listen == nil {
		d.Listen = net.Listen
	}
	if d.OnReady == nil {
		d.OnReady = func(string) {}
	}
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API. Sessions and password reset tokens live in Redis,
users and posts in PostgreSQL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := logging.New(logging.Options{
				Service: serviceName,
				Version: version,
				Format:  cfg.Log.Format,
				Level:   cfg.Log.Level,
				Writer:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			return runServe(ctx, cfg, logger, nil)
		},
	}
}

// runServe runs the API until ctx is canceled or a listener fails.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.withDefaults()

	logger.InfoContext(ctx, "starting api server",
		"environment", cfg.Environment,
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr)

	if cfg.Database.AutoMigrate {
		if err := deps.Migrate(cfg.Database.URL); err != nil {
			return err
		}
		logger.InfoContext(ctx, "database migrations applied")
	}

	db, err := deps.ConnectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := deps.ConnectRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rdb.Close(); closeErr != nil {
			logger.Warn("error closing redis client", "error", closeErr)
		}
	}()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	users := authpg.NewUserRepository(db)
	sessions, err := auth.NewSessionManager(redisstore.NewSessionStore(rdb), cfg.Session.TTL)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewServiceWithLogger(users, redisstore.NewResetTokenStore(rdb), sessions,
		auth.NewArgon2idHasher(), mailer,
		auth.ServiceConfig{FrontendURL: cfg.Frontend.URL, ResetTokenTTL: cfg.Reset.TTL},
		logger)
	if err != nil {
		return err
	}
	postSvc, err := post.NewServiceWithLogger(postpg.NewPostRepository(db), users, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, readinessCheck(db, rdb), logger)
		auth.RegisterMetrics(obsServer.Registry())
		metrics = obsServer.Metrics()

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	handler, err := web.NewHandler(web.Deps{
		Auth:     authSvc,
		Sessions: sessions,
		Posts:    postSvc,
		Metrics:  metrics,
		Logger:   logger,
	}, web.Config{
		CookieName:     cfg.Session.CookieName,
		SecureCookies:  cfg.Production(),
		AllowedOrigins: []string{cfg.Frontend.URL},
	})
	if err != nil {
		stopObservability(obsServer, cfg.HTTP.ShutdownTimeout, logger)
		return err
	}

	listener, err := deps.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer, cfg.HTTP.ShutdownTimeout, logger)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	apiServer := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
		close(errChan)
	}()

	logger.InfoContext(ctx, "api server ready", "addr", listener.Addr().String())
	deps.OnReady(listener.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-errChan:
		if ok {
			serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(obsServer, cfg.HTTP.ShutdownTimeout, logger)

	logger.Info("shutdown complete")
	return serveErr
}

// newMailer sends through SMTP when a relay is configured and logs emails
// otherwise.
func newMailer(cfg *config.Config, logger *slog.Logger) (auth.EmailSender, error) {
	if cfg.Mail.SMTPHost == "" {
		logger.Warn("no smtp host configured, emails will be logged")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Timeout:  cfg.Mail.Timeout,
	})
}

// readinessCheck reports ready when both stores answer.
func readinessCheck(db Database, rdb redis.Cmdable) observability.ReadinessChecker {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return oops.Code("DB_UNAVAILABLE").Wrap(err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return oops.Code("REDIS_UNAVAILABLE").Wrap(err)
		}
		return nil
	}
}

func stopObservability(s *observability.Server, timeout time.Duration, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when an error arrives, the channel closes, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
