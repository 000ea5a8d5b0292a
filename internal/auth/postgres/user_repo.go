// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

// Unique constraint names from the users migration.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user and assigns its ID.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			field := "email"
			if pgErr.ConstraintName == usernameConstraint {
				field = "username"
			}
			return oops.Code("USER_DUPLICATE").
				With("constraint", pgErr.ConstraintName).
				Wrap(&auth.ErrDuplicate{Field: field})
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// FindByUsernameOrEmail returns a user matching either value. A username
// match is preferred when both exist.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR email = $2
		ORDER BY (username = $1) DESC
		LIMIT 1
	`, username, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FIND_FAILED").
			With("operation", "find user by username or email").
			Wrap(err)
	}
	return user, nil
}

// UpdatePassword updates only the password hash for a user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}
	return &u, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
