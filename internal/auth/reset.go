// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultResetTokenTTL is how long a password reset token stays usable.
const DefaultResetTokenTTL = 5 * time.Minute

// ResetToken is a stored password reset credential. Only the hash of the
// token sent by email is kept.
type ResetToken struct {
	UserID    int64     `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// NewResetToken creates a validated ResetToken stamped with the current time.
func NewResetToken(userID int64, tokenHash string) (*ResetToken, error) {
	if userID <= 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID must be positive")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	return &ResetToken{
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// IsExpiredAt returns true if the token is older than ttl at the given time.
func (t *ResetToken) IsExpiredAt(now time.Time, ttl time.Duration) bool {
	return !now.Before(t.CreatedAt.Add(ttl))
}

// GenerateResetToken returns a fresh random plaintext token.
func GenerateResetToken() string {
	return uuid.NewString()
}

// ResetTokenRepository manages password reset token persistence.
// Implementations keep at most one token per user and expire records
// passively after the ttl given to Create.
type ResetTokenRepository interface {
	// Create stores a token, replacing any token the user already has.
	Create(ctx context.Context, token *ResetToken, ttl time.Duration) error

	// GetByUser returns the live token for a user, or ErrNotFound.
	GetByUser(ctx context.Context, userID int64) (*ResetToken, error)

	// Consume deletes the user's token only if it still has the given hash.
	// Returns ErrNotFound when the token is gone or was superseded.
	Consume(ctx context.Context, userID int64, tokenHash string) error

	// DeleteByUser removes the user's token. Absent tokens are not an error.
	DeleteByUser(ctx context.Context, userID int64) error
}
