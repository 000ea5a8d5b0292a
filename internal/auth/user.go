// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// Password length constraint shared by registration and password change.
const MinPasswordLength = 3

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser creates a User ready to be persisted. The ID is assigned by the
// repository on Create.
func NewUser(username, email, passwordHash string) (*User, error) {
	if username == "" {
		return nil, oops.Code("USER_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	now := time.Now().UTC()
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// RegisterInput is the payload of a registration request.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,excludes=@"`
	Email    string `json:"email" validate:"required,contains=@,mailbox"`
	Password string `json:"password" validate:"required,min=3"`
}

// LoginInput is the payload of a login request.
type LoginInput struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

// ForgotPasswordInput is the payload of a forgot-password request.
type ForgotPasswordInput struct {
	Email string `json:"email"`
}

// ChangePasswordInput is the payload of a change-password request.
type ChangePasswordInput struct {
	NewPassword string `json:"newPassword"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so field errors line up with request keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Addresses end up in mail headers, where spaces and line breaks are not allowed.
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsControl(r)
		})
	})
	return v
}

// ValidateRegisterInput checks the shape of a registration request.
// Returns nil when the input is acceptable.
func ValidateRegisterInput(in RegisterInput) []FieldError {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "input", Message: err.Error()}}
	}

	fieldErrors := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return fieldErrors
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Cannot be empty"
	case "min":
		return "Length must be greater than 2"
	case "excludes":
		return "Cannot include @"
	case "contains":
		return "Must include @ symbol"
	case "mailbox":
		return "Cannot include spaces or line breaks"
	default:
		return "Invalid value"
	}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and assigns its ID.
	// Returns *ErrDuplicate when username or email is already taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// FindByUsernameOrEmail retrieves any user whose username or email matches.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
