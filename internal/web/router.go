// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package web exposes the auth and post services over HTTP.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
	"github.com/agora-forum/agora/internal/observability"
	"github.com/agora-forum/agora/internal/post"
)

// Config holds transport settings.
type Config struct {
	// CookieName names the session cookie. Defaults to auth.DefaultCookieName.
	CookieName string

	// SecureCookies sets the Secure attribute; enabled in production.
	SecureCookies bool

	// AllowedOrigins are the CORS origins allowed to send credentials.
	AllowedOrigins []string

	// RequestTimeout bounds handler execution. Defaults to 30s.
	RequestTimeout time.Duration
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Auth     *auth.Service
	Sessions *auth.SessionManager
	Posts    *post.Service

	// Metrics is optional.
	Metrics *observability.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Handler serves the /api routes.
type Handler struct {
	auth     *auth.Service
	sessions *auth.SessionManager
	posts    *post.Service
	metrics  *observability.Metrics
	logger   *slog.Logger
	cfg      Config
}

// NewHandler validates deps and applies config defaults.
func NewHandler(deps Deps, cfg Config) (*Handler, error) {
	if deps.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if deps.Sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if deps.Posts == nil {
		return nil, oops.Errorf("post service is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = auth.DefaultCookieName
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &Handler{
		auth:     deps.Auth,
		sessions: deps.Sessions,
		posts:    deps.Posts,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cfg:      cfg,
	}, nil
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(h.requestID)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.session)

		r.Get("/me", h.me)
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Post("/forgot-password", h.forgotPassword)
		r.Post("/change-password", h.changePassword)
		r.Get("/route-guard", h.routeGuard)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.listPosts)
			r.Get("/{id}", h.getPost)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/", h.createPost)
				r.Put("/{id}", h.updatePost)
				r.Delete("/{id}", h.deletePost)
			})
		})
	})

	return r
}
