// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package errutil

import (
	"fmt"
	"reflect"

	"github.com/samber/oops"
)

// TB is the part of testing.TB the assertions use.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

func mustOops(t TB, err error) (oops.OopsError, bool) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		t.Errorf("expected oops error, got %T (%v)", err, err)
		t.FailNow()
	}
	return oopsErr, ok
}

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t TB, err error, code string) {
	t.Helper()
	oopsErr, ok := mustOops(t, err)
	if !ok {
		return
	}
	if got := fmt.Sprint(oopsErr.Code()); got != code {
		t.Errorf("error code: want %q, got %q (%v)", code, got, err)
	}
}

// AssertErrorContext asserts that err is an oops error carrying key with the
// given value.
func AssertErrorContext(t TB, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := mustOops(t, err)
	if !ok {
		return
	}
	got, found := oopsErr.Context()[key]
	switch {
	case !found:
		t.Errorf("error context has no %q: %v", key, oopsErr.Context())
	case !reflect.DeepEqual(value, got):
		t.Errorf("error context %q: want %#v, got %#v", key, value, got)
	}
}

// AssertOperationError asserts the code and the "operation" context key that
// storage and service errors carry.
func AssertOperationError(t TB, err error, code, operation string) {
	t.Helper()
	AssertErrorCode(t, err, code)
	AssertErrorContext(t, err, "operation", operation)
}
