// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/agora-forum/agora/pkg/errutil"
)

const invalidResetTokenMessage = "Invalid or expired password reset token"

// ForgotPassword starts password recovery for an email address. It reports
// true whether or not the address belongs to a user; the error is reserved
// for storage failures.
func (s *Service) ForgotPassword(ctx context.Context, email string) (bool, error) {
	const op = "forgot_password"

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordOperation(op, OutcomeSuccess)
			return true, nil
		}
		recordOperation(op, OutcomeError)
		return false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	// A new request supersedes whatever token the user had.
	if err := s.resets.DeleteByUser(ctx, user.ID); err != nil {
		recordOperation(op, OutcomeError)
		return false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "delete previous token").
			With("user_id", user.ID).
			Wrap(err)
	}

	token := GenerateResetToken()
	hash, err := s.hasher.Hash(token)
	if err != nil {
		recordOperation(op, OutcomeError)
		return false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "hash token").
			Wrap(err)
	}

	record, err := NewResetToken(user.ID, hash)
	if err != nil {
		recordOperation(op, OutcomeError)
		return false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "new reset token").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, record, s.cfg.ResetTokenTTL); err != nil {
		recordOperation(op, OutcomeError)
		return false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	if err := s.mailer.Send(ctx, user.Email, s.resetEmailBody(token, user.ID)); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "sending password reset email failed",
			oops.Code("RESET_EMAIL_FAILED").With("user_id", user.ID).Wrap(err))
	}

	s.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID)
	recordOperation(op, OutcomeSuccess)
	return true, nil
}

// ChangePasswordLink builds the link mailed to the user.
func ChangePasswordLink(frontendURL, token string, userID int64) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("userId", strconv.FormatInt(userID, 10))
	return frontendURL + "/change-password?" + q.Encode()
}

func (s *Service) resetEmailBody(token string, userID int64) string {
	return fmt.Sprintf("<a href='%s'>Click here to reset your password!</a>",
		ChangePasswordLink(s.cfg.FrontendURL, token, userID))
}

// ChangePassword completes password recovery. The token is single use: it is
// consumed before the new password is written, so a replay fails on the
// token field.
func (s *Service) ChangePassword(ctx context.Context, sess *Session, token, userID string, in ChangePasswordInput) *UserResponse {
	const op = "change_password"

	if utf8.RuneCountInString(in.NewPassword) < MinPasswordLength {
		recordOperation(op, OutcomeRejected)
		return userFailed("Invalid password", FieldError{
			Field:   "newPassword",
			Message: "Length must be greater than 2",
		})
	}

	invalidToken := func() *UserResponse {
		recordOperation(op, OutcomeRejected)
		return userFailed(invalidResetTokenMessage, FieldError{Field: "token", Message: invalidResetTokenMessage})
	}

	// Tokens are stored per numeric user ID, so nothing can match otherwise.
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || id <= 0 {
		return invalidToken()
	}

	record, err := s.resets.GetByUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidToken()
		}
		return s.internalError(ctx, op, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get reset token").
			With("user_id", id).
			Wrap(err))
	}
	if record.IsExpiredAt(s.now(), s.cfg.ResetTokenTTL) {
		return invalidToken()
	}

	valid, err := s.hasher.Verify(token, record.TokenHash)
	if err != nil {
		return s.internalError(ctx, op, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "verify reset token").
			With("user_id", id).
			Wrap(err))
	}
	if !valid {
		return invalidToken()
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordOperation(op, OutcomeRejected)
			return userFailed("User no longer exists", FieldError{Field: "token", Message: "User no longer exists"})
		}
		return s.internalError(ctx, op, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user").
			With("user_id", id).
			Wrap(err))
	}

	newHash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return s.internalError(ctx, op, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}

	if err := s.resets.Consume(ctx, id, record.TokenHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidToken()
		}
		return s.internalError(ctx, op, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "consume reset token").
			With("user_id", id).
			Wrap(err))
	}

	if err := s.users.UpdatePassword(ctx, id, newHash); err != nil {
		s.restoreResetToken(ctx, record)
		return s.internalError(ctx, op, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", id).
			Wrap(err))
	}
	user.PasswordHash = newHash
	user.UpdatedAt = s.now().UTC()

	if err := s.sessions.Bind(ctx, sess, user.ID); err != nil {
		return s.internalError(ctx, op, err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID)
	recordOperation(op, OutcomeSuccess)
	return userOK("User password reset successfully", user)
}

// restoreResetToken puts a consumed token back for the rest of its lifetime
// after the password write failed, so the emailed link keeps working.
func (s *Service) restoreResetToken(ctx context.Context, record *ResetToken) {
	remaining := record.CreatedAt.Add(s.cfg.ResetTokenTTL).Sub(s.now())
	if remaining <= 0 {
		return
	}
	if err := s.resets.Create(ctx, record, remaining); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "reset token consumed but password not changed",
			oops.Code("RESET_TOKEN_RESTORE_FAILED").
				With("user_id", record.UserID).
				Wrap(err))
	}
}
