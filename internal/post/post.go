// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package post provides forum posts and their cursor pagination.
package post

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// Pagination limits.
const (
	MaxPageSize   = 10
	SnippetLength = 50
)

// ErrNotFound is returned when a post does not exist.
var ErrNotFound = errors.New("post not found")

// Post is a forum post.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Position returns the post's place in the listing order.
func (p *Post) Position() Cursor {
	return Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// Cursor is an exclusive position in the newest-first listing. A zero ID
// means only the timestamp is known: every post created strictly before
// CreatedAt comes after the cursor.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// Equal reports whether both cursors name the same position.
func (c Cursor) Equal(other Cursor) bool {
	return c.CreatedAt.Equal(other.CreatedAt) && c.ID == other.ID
}

// ParseCursor parses the query form of a cursor. The timestamp is RFC 3339
// or Unix milliseconds; id is optional. An empty timestamp yields nil.
func ParseCursor(createdAt, id string) (*Cursor, error) {
	if createdAt == "" {
		return nil, nil
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		ms, msErr := strconv.ParseInt(createdAt, 10, 64)
		if msErr != nil {
			return nil, oops.Code("POST_INVALID_CURSOR").
				With("cursor", createdAt).
				Wrap(err)
		}
		ts = time.UnixMilli(ms)
	}

	c := &Cursor{CreatedAt: ts.UTC()}
	if id != "" {
		c.ID, err = strconv.ParseInt(id, 10, 64)
		if err != nil || c.ID < 0 {
			return nil, oops.Code("POST_INVALID_CURSOR").
				With("cursor_id", id).
				Errorf("cursor id must be a non-negative integer")
		}
	}
	return c, nil
}

// Page is one step of a forward-only listing.
type Page struct {
	TotalCount int64
	Cursor     Cursor
	HasMore    bool
	Posts      []*Post
}

// Repository manages post persistence.
type Repository interface {
	// Count returns the number of posts.
	Count(ctx context.Context) (int64, error)

	// List returns up to limit posts after the cursor, newest first
	// (created_at DESC, id DESC). A nil cursor starts at the newest post.
	List(ctx context.Context, after *Cursor, limit int) ([]*Post, error)

	// Oldest returns the last post of the full listing, or ErrNotFound.
	Oldest(ctx context.Context) (*Post, error)

	// Get retrieves a post by ID.
	Get(ctx context.Context, id int64) (*Post, error)

	// Create stores a post and assigns its ID.
	Create(ctx context.Context, post *Post) error

	// Update writes title, text and updated_at.
	Update(ctx context.Context, post *Post) error

	// Delete removes a post.
	Delete(ctx context.Context, id int64) error
}
