// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package posttest provides an in-memory post repository for tests.
package posttest

import (
	"context"
	"slices"
	"sync"

	"github.com/agora-forum/agora/internal/post"
)

// Repository is an in-memory post.Repository with the same ordering rules
// as the SQL implementation.
type Repository struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]post.Post
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{posts: make(map[int64]post.Post)}
}

// before reports whether a comes before b in newest-first order.
func before(a, b post.Cursor) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (r *Repository) sorted() []post.Post {
	all := make([]post.Post, 0, len(r.posts))
	for _, p := range r.posts {
		all = append(all, p)
	}
	slices.SortFunc(all, func(a, b post.Post) int {
		switch {
		case before(a.Position(), b.Position()):
			return -1
		case before(b.Position(), a.Position()):
			return 1
		default:
			return 0
		}
	})
	return all
}

// Count returns the number of posts.
func (r *Repository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.posts)), nil
}

// List returns up to limit posts after the cursor.
func (r *Repository) List(_ context.Context, after *post.Cursor, limit int) ([]*post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*post.Post, 0, limit)
	for _, p := range r.sorted() {
		if len(out) == limit {
			break
		}
		if after != nil {
			if after.ID == 0 && !p.CreatedAt.Before(after.CreatedAt) {
				continue
			}
			if after.ID != 0 && !before(*after, p.Position()) {
				continue
			}
		}
		found := p
		out = append(out, &found)
	}
	return out, nil
}

// Oldest returns the last post in listing order.
func (r *Repository) Oldest(_ context.Context) (*post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	if len(all) == 0 {
		return nil, post.ErrNotFound
	}
	last := all[len(all)-1]
	return &last, nil
}

// Get returns a copy of a post.
func (r *Repository) Get(_ context.Context, id int64) (*post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	return &p, nil
}

// Create stores a post, assigning the next ID.
func (r *Repository) Create(_ context.Context, p *post.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	r.posts[p.ID] = *p
	return nil
}

// Update replaces a stored post.
func (r *Repository) Update(_ context.Context, p *post.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.ID]; !ok {
		return post.ErrNotFound
	}
	r.posts[p.ID] = *p
	return nil
}

// Delete removes a post.
func (r *Repository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return post.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

var _ post.Repository = (*Repository)(nil)
