// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

const sessionKeyPrefix = "sess:"

// SessionStore implements auth.SessionStore on Redis.
type SessionStore struct {
	client redis.Cmdable
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(tokenHash string) string {
	return sessionKeyPrefix + tokenHash
}

// Get returns the session record for a token hash.
func (s *SessionStore) Get(ctx context.Context, tokenHash string) (*auth.SessionRecord, error) {
	data, err := s.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	var record auth.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, oops.Code("SESSION_CORRUPT").
			With("operation", "unmarshal session").
			Wrap(err)
	}
	return &record, nil
}

// Save stores the session record with the given TTL.
func (s *SessionStore) Save(ctx context.Context, tokenHash string, record *auth.SessionRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "marshal session").
			Wrap(err)
	}
	if err := s.client.Set(ctx, sessionKey(tokenHash), data, ttl).Err(); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "set session").
			With("session_id", record.ID.String()).
			Wrap(err)
	}
	return nil
}

// Delete removes the session record.
func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, sessionKey(tokenHash)).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
