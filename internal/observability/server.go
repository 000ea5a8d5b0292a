// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker reports why the service cannot take traffic, or nil.
type ReadinessChecker func(ctx context.Context) error

// readinessTimeout bounds a single readiness check.
const readinessTimeout = 2 * time.Second

// Metrics contains the API's HTTP metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the HTTP metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agora_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agora_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)

	return m
}

// Server serves /metrics and the health probes on a separate listener.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer creates a new observability server listening on addr
// ("127.0.0.1:9100", or ":0" for an ephemeral port).
func NewServer(addr string, readinessChecker ReadinessChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry),
		isReady:  readinessChecker,
		logger:   logger,
	}
}

// Metrics returns the HTTP metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the registry served on /metrics, for other packages'
// collectors.
func (s *Server) Registry() prometheus.Registerer {
	return s.registry
}

// Handler returns the observability routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	return mux
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := s.isReady(ctx); err != nil {
			s.logger.WarnContext(ctx, "readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			//nolint:errcheck // client may disconnect
			w.Write([]byte("not ready\n"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}
