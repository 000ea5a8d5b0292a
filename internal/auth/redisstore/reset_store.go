// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

const resetKeyPrefix = "reset:"

// ResetTokenStore implements auth.ResetTokenRepository on Redis. Each user
// owns a single key, so storing a token always supersedes the previous one.
type ResetTokenStore struct {
	client *redis.Client
}

// NewResetTokenStore creates a new ResetTokenStore.
func NewResetTokenStore(client *redis.Client) *ResetTokenStore {
	return &ResetTokenStore{client: client}
}

func resetKey(userID int64) string {
	return resetKeyPrefix + strconv.FormatInt(userID, 10)
}

// Create stores the token for its user with the given TTL.
func (s *ResetTokenStore) Create(ctx context.Context, token *auth.ResetToken, ttl time.Duration) error {
	data, err := json.Marshal(token)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "marshal reset token").
			Wrap(err)
	}
	if err := s.client.Set(ctx, resetKey(token.UserID), data, ttl).Err(); err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "set reset token").
			With("user_id", token.UserID).
			Wrap(err)
	}
	return nil
}

// GetByUser returns the live token for a user.
func (s *ResetTokenStore) GetByUser(ctx context.Context, userID int64) (*auth.ResetToken, error) {
	token, err := getToken(ctx, s.client, userID)
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("RESET_TOKEN_NOT_FOUND").
			With("user_id", userID).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get reset token").
			With("user_id", userID).
			Wrap(err)
	}
	return token, nil
}

// Consume deletes the user's token if it still carries tokenHash. The key is
// watched so a concurrent Create or Consume aborts this one.
func (s *ResetTokenStore) Consume(ctx context.Context, userID int64, tokenHash string) error {
	key := resetKey(userID)
	notFound := oops.Code("RESET_TOKEN_NOT_FOUND").
		With("user_id", userID).
		Wrap(auth.ErrNotFound)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		token, err := getToken(ctx, tx, userID)
		if err != nil {
			return err
		}
		if token.TokenHash != tokenHash {
			return notFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil), errors.Is(err, redis.TxFailedErr), errors.Is(err, auth.ErrNotFound):
		return notFound
	default:
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume reset token").
			With("user_id", userID).
			Wrap(err)
	}
}

// DeleteByUser removes the user's token if any.
func (s *ResetTokenStore) DeleteByUser(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, resetKey(userID)).Err(); err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete reset token").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getToken(ctx context.Context, c getter, userID int64) (*auth.ResetToken, error) {
	data, err := c.Get(ctx, resetKey(userID)).Bytes()
	if err != nil {
		return nil, err //nolint:wrapcheck // callers map redis.Nil
	}
	var token auth.ResetToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, oops.Code("RESET_CORRUPT").
			With("operation", "unmarshal reset token").
			With("user_id", userID).
			Wrap(err)
	}
	return &token, nil
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenStore)(nil)
