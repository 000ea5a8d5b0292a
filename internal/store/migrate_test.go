// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package store

import (
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-forum/agora/pkg/errutil"
)

type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDbErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(_ int) error            { return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Force(_ int) error            { return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDbErr }

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/agora":   "pgx5://u:p@db:5432/agora",
		"postgresql://u:p@db:5432/agora": "pgx5://u:p@db:5432/agora",
		"pgx5://u:p@db:5432/agora":       "pgx5://u:p@db:5432/agora",
	}
	for in, want := range tests {
		assert.Equal(t, want, MigrateURL(in), in)
	}
}

func TestNewMigrator_InitFailures(t *testing.T) {
	for _, url := range []string{
		"invalid://url",
		"badscheme://localhost:5432/testdb",
		// Rewritten to pgx5://, so the failure is the connection and not the driver name.
		"postgresql://127.0.0.1:1/testdb?connect_timeout=1",
	} {
		t.Run(url, func(t *testing.T) {
			_, err := NewMigrator(url)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
			assert.NotContains(t, err.Error(), "unknown driver postgresql")
		})
	}
}

func TestMigrator_Operations(t *testing.T) {
	tests := []struct {
		name     string
		mock     *mockMigrate
		call     func(*Migrator) error
		wantCode string
	}{
		{"up", &mockMigrate{}, (*Migrator).Up, ""},
		{"up no change", &mockMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up error", &mockMigrate{upErr: errors.New("database locked")}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &mockMigrate{}, (*Migrator).Down, ""},
		{"down no change", &mockMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down error", &mockMigrate{downErr: errors.New("constraint violation")}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &mockMigrate{}, func(m *Migrator) error { return m.Steps(2) }, ""},
		{"steps zero", &mockMigrate{stepsErr: migrate.ErrNoChange}, func(m *Migrator) error { return m.Steps(0) }, ""},
		{"steps error", &mockMigrate{stepsErr: errors.New("invalid step")}, func(m *Migrator) error { return m.Steps(5) }, "MIGRATION_STEPS_FAILED"},
		{"force", &mockMigrate{}, func(m *Migrator) error { return m.Force(1) }, ""},
		{"force error", &mockMigrate{forceErr: errors.New("locked")}, func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"force negative", &mockMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(&Migrator{m: tt.mock})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockMigrate{versionVal: 2}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.False(t, dirty)
	})

	t.Run("dirty", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockMigrate{versionVal: 1, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(1), v)
		assert.True(t, dirty)
	})

	t.Run("empty database", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("error", func(t *testing.T) {
		_, _, err := (&Migrator{m: &mockMigrate{versionErr: errors.New("connection lost")}}).Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{m: &mockMigrate{}}).Close())

	tests := []struct {
		name      string
		mock      *mockMigrate
		component string
	}{
		{"source", &mockMigrate{closeSourceErr: errors.New("source close failed")}, "source"},
		{"database", &mockMigrate{closeDbErr: errors.New("db close failed")}, "database"},
		{"both", &mockMigrate{
			closeSourceErr: errors.New("source close failed"),
			closeDbErr:     errors.New("db close failed"),
		}, "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.mock}).Close()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	tests := []struct {
		name    string
		mock    *mockMigrate
		pending []uint
		applied []uint
	}{
		{"fresh", &mockMigrate{versionErr: migrate.ErrNilVersion}, []uint{1, 2}, nil},
		{"users only", &mockMigrate{versionVal: 1}, []uint{2}, []uint{1}},
		{"latest", &mockMigrate{versionVal: 2}, nil, []uint{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.mock}

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.pending, pending)

			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)
		})
	}

	t.Run("version error", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("connection lost")}}
		_, err := m.PendingMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get pending migrations")
		_, err = m.AppliedMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get applied migrations")
	})
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		version uint
		want    string
	}{
		{1, "000001_users"},
		{2, "000002_posts"},
		{999, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("version_%d", tt.version), func(t *testing.T) {
			name, err := MigrationName(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestMigrationsFS_FileNames(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		assert.Regexp(t, pattern, entry.Name())
	}
}

func TestAllMigrationVersions_ReturnsCopy(t *testing.T) {
	first, err := allMigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0] = 99999

	second, err := allMigrationVersions()
	require.NoError(t, err)
	assert.Equal(t, uint(1), second[0])
}
