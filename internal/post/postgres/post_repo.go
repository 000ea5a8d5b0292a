// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package postgres provides the PostgreSQL post repository.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/post"
)

// poolIface is the subset of *pgxpool.Pool used by PostRepository.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postColumns = `id, title, text, user_id, created_at, updated_at`

// PostRepository implements post.Repository using PostgreSQL.
type PostRepository struct {
	pool poolIface
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(pool poolIface) *PostRepository {
	return &PostRepository{pool: pool}
}

// Count returns the number of posts.
func (r *PostRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM posts`).Scan(&n); err != nil {
		return 0, oops.Code("POST_COUNT_FAILED").With("operation", "count posts").Wrap(err)
	}
	return n, nil
}

// List returns up to limit posts after the cursor, newest first.
func (r *PostRepository) List(ctx context.Context, after *post.Cursor, limit int) ([]*post.Post, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case after == nil:
		rows, err = r.pool.Query(ctx, `
			SELECT `+postColumns+` FROM posts
			ORDER BY created_at DESC, id DESC
			LIMIT $1`, limit)
	case after.ID == 0:
		rows, err = r.pool.Query(ctx, `
			SELECT `+postColumns+` FROM posts
			WHERE created_at < $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, after.CreatedAt, limit)
	default:
		rows, err = r.pool.Query(ctx, `
			SELECT `+postColumns+` FROM posts
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3`, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", "query posts").Wrap(err)
	}
	defer rows.Close()

	posts := make([]*post.Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", "iterate posts").Wrap(err)
	}
	return posts, nil
}

// Oldest returns the last post of the listing order.
func (r *PostRepository) Oldest(ctx context.Context) (*post.Post, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+postColumns+` FROM posts
		ORDER BY created_at ASC, id ASC
		LIMIT 1`)

	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("POST_NOT_FOUND").Wrap(post.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("POST_OLDEST_FAILED").With("operation", "get oldest post").Wrap(err)
	}
	return p, nil
}

// Get retrieves a post by ID.
func (r *PostRepository) Get(ctx context.Context, id int64) (*post.Post, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)

	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("POST_NOT_FOUND").With("id", id).Wrap(post.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("POST_GET_FAILED").
			With("operation", "get post").
			With("id", id).
			Wrap(err)
	}
	return p, nil
}

// Create stores a post and assigns its ID.
func (r *PostRepository) Create(ctx context.Context, p *post.Post) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO posts (title, text, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.Title, p.Text, p.UserID, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return oops.Code("POST_CREATE_FAILED").
			With("operation", "insert post").
			With("user_id", p.UserID).
			Wrap(err)
	}
	return nil
}

// Update writes title, text and updated_at.
func (r *PostRepository) Update(ctx context.Context, p *post.Post) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE posts SET title = $2, text = $3, updated_at = $4
		WHERE id = $1
	`, p.ID, p.Title, p.Text, p.UpdatedAt)
	if err != nil {
		return oops.Code("POST_UPDATE_FAILED").
			With("operation", "update post").
			With("id", p.ID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("POST_NOT_FOUND").With("id", p.ID).Wrap(post.ErrNotFound)
	}
	return nil
}

// Delete removes a post.
func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return oops.Code("POST_DELETE_FAILED").
			With("operation", "delete post").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("POST_NOT_FOUND").With("id", id).Wrap(post.ErrNotFound)
	}
	return nil
}

// scanPost scans a single row into a Post.
// Callers are responsible for handling pgx.ErrNoRows.
func scanPost(row pgx.Row) (*post.Post, error) {
	var p post.Post
	if err := row.Scan(&p.ID, &p.Title, &p.Text, &p.UserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("POST_SCAN_FAILED").With("operation", "scan post").Wrap(err)
	}
	return &p, nil
}

// Compile-time interface check.
var _ post.Repository = (*PostRepository)(nil)
