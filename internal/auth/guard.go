// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import "slices"

// Redirect targets used by CheckRoute.
const (
	HomeRoute  = "/"
	LoginRoute = "/login"
)

// authOnlyRoutes are only meaningful to anonymous visitors.
var authOnlyRoutes = []string{
	"/login",
	"/register",
	"/forgot-password",
	"/change-password",
}

// IsAuthOnlyRoute reports whether path is one of the login/register/recovery pages.
func IsAuthOnlyRoute(path string) bool {
	return slices.Contains(authOnlyRoutes, path)
}

// CheckRoute classifies a client route against the session state.
// It returns the path to redirect to and false when the visitor does not
// belong on the route, or ("", true) when access is fine.
func CheckRoute(path string, authenticated bool) (string, bool) {
	authOnly := IsAuthOnlyRoute(path)
	switch {
	case authenticated && authOnly:
		return HomeRoute, false
	case !authenticated && !authOnly:
		return LoginRoute, false
	default:
		return "", true
	}
}
