// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package web

import (
	"context"
	"net/http"
	"sync"

	"github.com/agora-forum/agora/internal/auth"
)

type sessionKey struct{}

// sessionFrom returns the session loaded by the session middleware.
func sessionFrom(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return sess
}

// session loads the session named by the cookie and writes the cookie back
// when a handler binds or destroys it.
func (h *Handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(h.cfg.CookieName); err == nil {
			token = c.Value
		}

		sess, err := h.sessions.Load(r.Context(), token)
		if err != nil {
			h.internalError(r.Context(), w, "loading session failed", err)
			return
		}

		sw := &sessionWriter{ResponseWriter: w, commit: func(w http.ResponseWriter) {
			h.commitSession(w, sess)
		}}
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
		sw.flushCookie()
	})
}

func (h *Handler) commitSession(w http.ResponseWriter, sess *auth.Session) {
	switch {
	case sess.Destroyed():
		http.SetCookie(w, h.cookie("", -1))
	case sess.Modified():
		http.SetCookie(w, h.cookie(sess.Token, int(h.sessions.TTL().Seconds())))
	}
}

func (h *Handler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// sessionWriter sets the session cookie just before the headers are sent.
type sessionWriter struct {
	http.ResponseWriter
	commit func(http.ResponseWriter)
	once   sync.Once
}

func (w *sessionWriter) flushCookie() {
	w.once.Do(func() { w.commit(w.ResponseWriter) })
}

func (w *sessionWriter) WriteHeader(status int) {
	w.flushCookie()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flushCookie()
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// requireAuth rejects anonymous sessions with 401.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.RequireUser(sessionFrom(r.Context())); err != nil {
			h.writeError(r.Context(), w, http.StatusUnauthorized, auth.ErrUnauthorizedMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}
