// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package authtest provides in-memory auth stores for tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/agora-forum/agora/internal/auth"
)

// UserRepository is an in-memory auth.UserRepository with the same
// uniqueness rules as the database schema.
type UserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]auth.User
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int64]auth.User)}
}

// Create stores a user and assigns the next ID.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return &auth.ErrDuplicate{Field: "username"}
		}
		if u.Email == user.Email {
			return &auth.ErrDuplicate{Field: "email"}
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) find(match func(auth.User) bool) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, auth.ErrNotFound
}

// GetByID returns a copy of the user with the given ID.
func (r *UserRepository) GetByID(_ context.Context, id int64) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.ID == id })
}

// GetByUsername returns a copy of the user with the given username.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.Username == username })
}

// GetByEmail returns a copy of the user with the given email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.Email == email })
}

// FindByUsernameOrEmail prefers a username match.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*auth.User, error) {
	if u, err := r.GetByUsername(ctx, username); err == nil {
		return u, nil
	}
	return r.GetByEmail(ctx, email)
}

// UpdatePassword replaces the stored hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

// Delete removes a user. It exists so tests can simulate deleted accounts.
func (r *UserRepository) Delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

// ResetTokenStore is an in-memory auth.ResetTokenRepository. Expiry follows
// the injectable clock.
type ResetTokenStore struct {
	mu     sync.Mutex
	tokens map[int64]expiring[auth.ResetToken]
	Now    func() time.Time
}

// NewResetTokenStore creates an empty ResetTokenStore using the wall clock.
func NewResetTokenStore() *ResetTokenStore {
	return &ResetTokenStore{tokens: make(map[int64]expiring[auth.ResetToken]), Now: time.Now}
}

// Create stores the token, replacing the user's previous one.
func (s *ResetTokenStore) Create(_ context.Context, token *auth.ResetToken, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.UserID] = expiring[auth.ResetToken]{value: *token, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *ResetTokenStore) live(userID int64) (auth.ResetToken, bool) {
	e, ok := s.tokens[userID]
	if !ok {
		return auth.ResetToken{}, false
	}
	if !s.Now().Before(e.expiresAt) {
		delete(s.tokens, userID)
		return auth.ResetToken{}, false
	}
	return e.value, true
}

// GetByUser returns the user's live token.
func (s *ResetTokenStore) GetByUser(_ context.Context, userID int64) (*auth.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.live(userID)
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &tok, nil
}

// Consume deletes the token if it still has tokenHash.
func (s *ResetTokenStore) Consume(_ context.Context, userID int64, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.live(userID)
	if !ok || tok.TokenHash != tokenHash {
		return auth.ErrNotFound
	}
	delete(s.tokens, userID)
	return nil
}

// DeleteByUser removes the user's token.
func (s *ResetTokenStore) DeleteByUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// Len returns the number of stored tokens, live or not.
func (s *ResetTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// SessionStore is an in-memory auth.SessionStore.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]expiring[auth.SessionRecord]
	Now      func() time.Time
}

// NewSessionStore creates an empty SessionStore using the wall clock.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]expiring[auth.SessionRecord]), Now: time.Now}
}

// Get returns the live record for a token hash.
func (s *SessionStore) Get(_ context.Context, tokenHash string) (*auth.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[tokenHash]
	if !ok || !s.Now().Before(e.expiresAt) {
		delete(s.sessions, tokenHash)
		return nil, auth.ErrNotFound
	}
	rec := e.value
	return &rec, nil
}

// Save stores a record with the given ttl.
func (s *SessionStore) Save(_ context.Context, tokenHash string, record *auth.SessionRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tokenHash] = expiring[auth.SessionRecord]{value: *record, expiresAt: s.Now().Add(ttl)}
	return nil
}

// Delete removes a record.
func (s *SessionStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

// Email is a message captured by Mailer.
type Email struct {
	To   string
	Body string
}

// Mailer records sent email.
type Mailer struct {
	mu   sync.Mutex
	sent []Email
}

// Send records the message.
func (m *Mailer) Send(_ context.Context, to, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Email{To: to, Body: htmlBody})
	return nil
}

// Sent returns the captured messages in order.
func (m *Mailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}

// Last returns the most recent message, or false if none was sent.
func (m *Mailer) Last() (Email, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Email{}, false
	}
	return m.sent[len(m.sent)-1], true
}

var (
	_ auth.UserRepository       = (*UserRepository)(nil)
	_ auth.ResetTokenRepository = (*ResetTokenStore)(nil)
	_ auth.SessionStore         = (*SessionStore)(nil)
	_ auth.EmailSender          = (*Mailer)(nil)
)
