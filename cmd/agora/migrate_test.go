// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-forum/agora/pkg/errutil"
)

type fakeMigrator struct {
	pending  []uint
	version  uint
	dirty    bool
	err      error
	closeErr error

	calls []string
	steps int
	force int
}

func (f *fakeMigrator) Up() error                          { f.calls = append(f.calls, "up"); return f.err }
func (f *fakeMigrator) Down() error                        { f.calls = append(f.calls, "down"); return f.err }
func (f *fakeMigrator) Steps(n int) error                  { f.calls = append(f.calls, "steps"); f.steps = n; return f.err }
func (f *fakeMigrator) Version() (uint, bool, error)       { return f.version, f.dirty, f.err }
func (f *fakeMigrator) Force(v int) error                  { f.calls = append(f.calls, "force"); f.force = v; return f.err }
func (f *fakeMigrator) PendingMigrations() ([]uint, error) { return f.pending, nil }
func (f *fakeMigrator) Close() error                       { f.calls = append(f.calls, "close"); return f.closeErr }

func useMigrator(t *testing.T, m *fakeMigrator) *[]string {
	t.Helper()
	urls := &[]string{}
	orig := newMigrator
	newMigrator = func(url string) (migrator, error) {
		*urls = append(*urls, url)
		return m, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	return urls
}

func runMigrate(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
	envFiles = nil
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"migrate", "--env-file", "", "--database-url", "postgres://localhost/agora"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestMigrateUp(t *testing.T) {
	t.Run("applies pending migrations", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1, 2}}
		urls := useMigrator(t, m)

		out, err := runMigrate(t, "up")
		require.NoError(t, err)
		assert.Contains(t, out, "Applying 2 migration(s)")
		assert.Equal(t, []string{"up", "close"}, m.calls)
		assert.Equal(t, []string{"postgres://localhost/agora"}, *urls)
	})

	t.Run("nothing pending", func(t *testing.T) {
		m := &fakeMigrator{}
		useMigrator(t, m)

		out, err := runMigrate(t, "up")
		require.NoError(t, err)
		assert.Contains(t, out, "No pending migrations")
		assert.Equal(t, []string{"close"}, m.calls)
	})

	t.Run("failure still closes", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1}, err: errors.New("boom")}
		useMigrator(t, m)

		_, err := runMigrate(t, "up")
		require.Error(t, err)
		assert.Equal(t, []string{"up", "close"}, m.calls)
	})

	t.Run("close error is reported", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1}, closeErr: errors.New("close failed")}
		useMigrator(t, m)

		_, err := runMigrate(t, "up")
		assert.ErrorContains(t, err, "close failed")
	})
}

func TestMigrateDown_RequiresConfirmation(t *testing.T) {
	m := &fakeMigrator{}
	useMigrator(t, m)

	_, err := runMigrate(t, "down")
	errutil.AssertErrorCode(t, err, "CONFIRMATION_REQUIRED")
	assert.Empty(t, m.calls)

	_, err = runMigrate(t, "down", "--yes")
	require.NoError(t, err)
	assert.Equal(t, []string{"down", "close"}, m.calls)
}

func TestMigrateSteps(t *testing.T) {
	m := &fakeMigrator{}
	useMigrator(t, m)

	_, err := runMigrate(t, "steps", "--", "-1")
	require.NoError(t, err)
	assert.Equal(t, -1, m.steps)

	for _, arg := range []string{"0", "abc"} {
		_, err = runMigrate(t, "steps", arg)
		assert.Error(t, err, arg)
	}
}

func TestMigrateVersion(t *testing.T) {
	tests := []struct {
		name    string
		version uint
		dirty   bool
		want    string
	}{
		{"empty database", 0, false, "Version: 0 (none)"},
		{"clean", 2, false, "Version: 2 (000002_posts)"},
		{"dirty", 1, true, "Version: 1 (000001_users, dirty)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useMigrator(t, &fakeMigrator{version: tt.version, dirty: tt.dirty})

			out, err := runMigrate(t, "version")
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestMigrateForce(t *testing.T) {
	m := &fakeMigrator{}
	useMigrator(t, m)

	out, err := runMigrate(t, "force", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.force)
	assert.Contains(t, out, "Forced version 1")

	_, err = runMigrate(t, "force", "one")
	assert.Error(t, err)
}

func TestMigrateUpHelper(t *testing.T) {
	m := &fakeMigrator{}
	useMigrator(t, m)

	require.NoError(t, migrateUp("postgres://localhost/agora"))
	assert.Equal(t, []string{"up", "close"}, m.calls)
}
