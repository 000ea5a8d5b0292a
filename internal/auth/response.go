// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import "net/http"

// FieldError identifies which input failed validation or a business rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// UserResponse is the result envelope of every user mutation.
// Callers inspect Success and Errors; business-rule failures are never
// returned as Go errors.
type UserResponse struct {
	Code    int          `json:"code"`
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	User    *User        `json:"user,omitempty"`
}

func userOK(message string, user *User) *UserResponse {
	return &UserResponse{Code: http.StatusOK, Success: true, Message: message, User: user}
}

func userFailed(message string, errs ...FieldError) *UserResponse {
	return &UserResponse{Code: http.StatusBadRequest, Success: false, Message: message, Errors: errs}
}

func userInternalError(err error) *UserResponse {
	return &UserResponse{
		Code:    http.StatusInternalServerError,
		Success: false,
		Message: "Internal server error " + err.Error(),
	}
}
