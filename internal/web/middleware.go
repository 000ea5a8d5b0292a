// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/agora-forum/agora/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client-supplied request ids.
const maxRequestIDLen = 64

// requestID propagates X-Request-ID, generating a ULID when absent, and adds
// it to the context for logging.
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = ulid.Make().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// accessLog logs each request and records HTTP metrics by route pattern.
func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		if h.metrics != nil {
			h.metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			h.metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}

		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", elapsed.Milliseconds(),
			"remote_addr", r.RemoteAddr)
	})
}
