// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/agora-forum/agora/pkg/errutil"
)

// EmailSender delivers HTML email. Delivery failures never fail the
// operation that triggered them.
type EmailSender interface {
	Send(ctx context.Context, to, htmlBody string) error
}

// ServiceConfig holds tunables for Service.
type ServiceConfig struct {
	// FrontendURL is the base of the change-password link sent by email.
	FrontendURL string

	// ResetTokenTTL defaults to DefaultResetTokenTTL.
	ResetTokenTTL time.Duration
}

// Service provides authentication operations.
type Service struct {
	users    UserRepository
	resets   ResetTokenRepository
	sessions *SessionManager
	hasher   PasswordHasher
	mailer   EmailSender
	cfg      ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new Service with a discard logger.
func NewService(
	users UserRepository,
	resets ResetTokenRepository,
	sessions *SessionManager,
	hasher PasswordHasher,
	mailer EmailSender,
	cfg ServiceConfig,
) (*Service, error) {
	return NewServiceWithLogger(users, resets, sessions, hasher, mailer, cfg, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a new Service with the provided logger.
func NewServiceWithLogger(
	users UserRepository,
	resets ResetTokenRepository,
	sessions *SessionManager,
	hasher PasswordHasher,
	mailer EmailSender,
	cfg ServiceConfig,
	logger *slog.Logger,
) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("reset token repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("email sender is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = DefaultResetTokenTTL
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &Service{
		users:    users,
		resets:   resets,
		sessions: sessions,
		hasher:   hasher,
		mailer:   mailer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Register creates an account and binds it to the session.
func (s *Service) Register(ctx context.Context, sess *Session, in RegisterInput) *UserResponse {
	const op = "register"

	if fieldErrs := ValidateRegisterInput(in); len(fieldErrs) > 0 {
		recordOperation(op, OutcomeRejected)
		return userFailed("Invalid "+fieldErrs[0].Field, fieldErrs...)
	}

	existing, err := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err == nil {
		recordOperation(op, OutcomeRejected)
		return duplicateResponse(existing.Username == in.Username)
	}
	if !errors.Is(err, ErrNotFound) {
		return s.internalError(ctx, op, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "find existing user").
			Wrap(err))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return s.internalError(ctx, op, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}

	user, err := NewUser(in.Username, in.Email, hash)
	if err != nil {
		return s.internalError(ctx, op, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "new user").
			Wrap(err))
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		var dup *ErrDuplicate
		if errors.As(err, &dup) {
			recordOperation(op, OutcomeRejected)
			return duplicateResponse(dup.Field == "username")
		}
		return s.internalError(ctx, op, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err))
	}

	if err := s.sessions.Bind(ctx, sess, user.ID); err != nil {
		return s.internalError(ctx, op, err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "session_id", sess.ID.String())
	recordOperation(op, OutcomeSuccess)
	return userOK("User registration successful", user)
}

func duplicateResponse(usernameTaken bool) *UserResponse {
	field, label := "email", "Email"
	if usernameTaken {
		field, label = "username", "Username"
	}
	return userFailed("Duplicated username or email", FieldError{
		Field:   field,
		Message: label + " already taken",
	})
}

// Login authenticates by email (identifier contains "@") or username and
// binds the user to the session. Unknown identifiers and wrong passwords
// are reported on different fields.
func (s *Service) Login(ctx context.Context, sess *Session, in LoginInput) *UserResponse {
	const op = "login"

	var (
		user *User
		err  error
	)
	if strings.Contains(in.EmailOrUsername, "@") {
		user, err = s.users.GetByEmail(ctx, in.EmailOrUsername)
	} else {
		user, err = s.users.GetByUsername(ctx, in.EmailOrUsername)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordOperation(op, OutcomeRejected)
			return userFailed("User not found", FieldError{
				Field:   "emailOrUsername",
				Message: "Username or email incorrect",
			})
		}
		return s.internalError(ctx, op, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user").
			Wrap(err))
	}

	valid, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return s.internalError(ctx, op, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(err))
	}
	if !valid {
		recordOperation(op, OutcomeRejected)
		return userFailed("Wrong password", FieldError{Field: "password", Message: "Wrong password"})
	}

	s.upgradeHash(ctx, user, in.Password)

	if err := s.sessions.Bind(ctx, sess, user.ID); err != nil {
		return s.internalError(ctx, op, err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "session_id", sess.ID.String())
	recordOperation(op, OutcomeSuccess)
	return userOK("Logged in successfully", user)
}

// upgradeHash re-hashes legacy password hashes with argon2id. Best effort:
// login succeeds even if the update fails.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	user.PasswordHash = newHash
}

// Logout destroys the session. It reports failure as false and never errors.
func (s *Service) Logout(ctx context.Context, sess *Session) bool {
	const op = "logout"

	if err := s.sessions.Destroy(ctx, sess); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "destroying session failed", err)
		recordOperation(op, OutcomeError)
		return false
	}
	recordOperation(op, OutcomeSuccess)
	return true
}

// Me returns the user bound to the session, or nil for anonymous sessions.
func (s *Service) Me(ctx context.Context, sess *Session) (*User, error) {
	if !sess.Authenticated() {
		return nil, nil
	}
	user, err := s.users.GetByID(ctx, *sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_ME_FAILED").
			With("user_id", *sess.UserID).
			Wrap(err)
	}
	return user, nil
}

func (s *Service) internalError(ctx context.Context, op string, err error) *UserResponse {
	errutil.LogErrorContext(ctx, s.logger, op+" failed", err)
	recordOperation(op, OutcomeError)
	return userInternalError(err)
}
