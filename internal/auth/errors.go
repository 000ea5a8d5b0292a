// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by a UserRepository when an insert violates the
// username or email uniqueness constraint. Field carries "username" or "email".
type ErrDuplicate struct {
	Field string
}

func (e *ErrDuplicate) Error() string {
	return "duplicate " + e.Field
}
