// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session configuration.
const (
	SessionTokenBytes = 32        // 32 bytes = 64 hex chars
	DefaultSessionTTL = time.Hour // cookie max-age and store expiry
	DefaultCookieName = "qid"
)

// Session is the request-scoped view of a server-side session.
// A session with a nil UserID is anonymous.
type Session struct {
	ID        ulid.ULID
	Token     string
	UserID    *int64
	CreatedAt time.Time

	modified  bool
	destroyed bool
}

// Authenticated reports whether a user is bound to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != nil && !s.destroyed
}

// Modified reports whether the session was persisted during this request,
// meaning the transport must (re)issue the cookie.
func (s *Session) Modified() bool {
	return s.modified
}

// Destroyed reports whether the session was destroyed during this request,
// meaning the transport must clear the cookie.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

// NewAnonymousSession creates an unsaved session with a fresh cookie token.
func NewAnonymousSession() (*Session, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        ulid.Make(),
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// GenerateSessionToken creates a secure random cookie value.
func GenerateSessionToken() (string, error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(tokenBytes), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
// Stores are keyed by the hash, never by the cookie value.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRecord is the persisted part of a session.
type SessionRecord struct {
	ID        ulid.ULID `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore persists session records with passive expiry.
type SessionStore interface {
	// Get returns the record for a token hash, or ErrNotFound if absent or expired.
	Get(ctx context.Context, tokenHash string) (*SessionRecord, error)

	// Save stores the record, replacing any previous one, expiring after ttl.
	Save(ctx context.Context, tokenHash string, record *SessionRecord, ttl time.Duration) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, tokenHash string) error
}

// SessionManager loads, binds and destroys sessions.
type SessionManager struct {
	store SessionStore
	ttl   time.Duration
}

// NewSessionManager creates a SessionManager. A non-positive ttl uses DefaultSessionTTL.
func NewSessionManager(store SessionStore, ttl time.Duration) (*SessionManager, error) {
	if store == nil {
		return nil, oops.Errorf("session store is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{store: store, ttl: ttl}, nil
}

// TTL returns the session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Load resolves the session for a cookie value. An empty, unknown or expired
// token yields a new anonymous session that is not persisted until bound.
func (m *SessionManager) Load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return NewAnonymousSession()
	}

	record, err := m.store.Get(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewAnonymousSession()
		}
		return nil, oops.Code("SESSION_LOAD_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	return &Session{
		ID:        record.ID,
		Token:     token,
		UserID:    record.UserID,
		CreatedAt: record.CreatedAt,
	}, nil
}

// Bind assigns a user to the session and persists it.
func (m *SessionManager) Bind(ctx context.Context, sess *Session, userID int64) error {
	if sess == nil {
		return oops.Code("SESSION_MISSING").Errorf("session is required")
	}
	record := &SessionRecord{
		ID:        sess.ID,
		UserID:    &userID,
		CreatedAt: sess.CreatedAt,
	}
	if err := m.store.Save(ctx, HashSessionToken(sess.Token), record, m.ttl); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("session_id", sess.ID.String()).
			With("user_id", userID).
			Wrap(err)
	}
	sess.UserID = &userID
	sess.modified = true
	sess.destroyed = false
	return nil
}

// Destroy removes the server-side state. The session is marked destroyed
// before the store is touched so the cookie is cleared even if deletion fails.
func (m *SessionManager) Destroy(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	sess.destroyed = true
	sess.modified = false
	sess.UserID = nil
	if err := m.store.Delete(ctx, HashSessionToken(sess.Token)); err != nil {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("session_id", sess.ID.String()).
			Wrap(err)
	}
	return nil
}

// RequireUser is the guard composed before operations that need an
// authenticated session. It returns the bound user ID.
func RequireUser(sess *Session) (int64, error) {
	if !sess.Authenticated() {
		return 0, ErrUnauthorized
	}
	return *sess.UserID, nil
}

// ErrUnauthorizedMessage is the client-facing text of ErrUnauthorized.
const ErrUnauthorizedMessage = "You are not authorized to perform this action."

// ErrUnauthorized is returned by RequireUser for anonymous sessions.
var ErrUnauthorized = oops.Code("AUTH_UNAUTHORIZED").Errorf(ErrUnauthorizedMessage)
