// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package auth provides authentication primitives for Agora.
//
// # Domain Types
//
//   - User - a registered account; NewUser validates and stamps timestamps
//   - Session - request-scoped identity loaded from the session cookie
//   - ResetToken - a hashed, short-lived password reset credential
//
// # Services
//
// Service coordinates registration, login, logout, the current-user query
// and the forgot/change password flow. Every operation that reads or binds
// identity receives the request's *Session explicitly; there is no
// process-wide session state.
//
// Business-rule failures (validation, collisions, bad credentials, invalid
// reset tokens) are reported as field errors inside a UserResponse.
// Infrastructure failures are logged and reported with code 500.
package auth
