// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/agora-forum/agora/internal/store"
)

// migrator is the subset of store.Migrator used by the migrate commands.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back and inspect the PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStepsCmd())
	cmd.AddCommand(newMigrateVersionCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				pending, err := m.PendingMigrations()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					cmd.Println("No pending migrations")
					return nil
				}
				cmd.Printf("Applying %d migration(s)...\n", len(pending))
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations, dropping every table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("refusing to drop all tables without --yes")
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping all tables")
	return cmd
}

func newMigrateStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back when N is negative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return oops.Code("INVALID_STEPS").Errorf("steps must be a non-zero integer, got %q", args[0])
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Applied %d step(s)\n", n)
				return nil
			})
		},
	}
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				name := "none"
				if v > 0 {
					if name, err = store.MigrationName(v); err != nil {
						return err
					}
				}
				if dirty {
					cmd.Printf("Version: %d (%s, dirty)\n", v, name)
					return nil
				}
				cmd.Printf("Version: %d (%s)\n", v, name)
				return nil
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long:  `Clear the dirty flag after a failed migration by recording VERSION as applied.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").Errorf("version must be an integer, got %q", args[0])
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", v)
				return nil
			})
		},
	}
}

// withMigrator loads configuration, opens a migrator and closes it after fn.
func withMigrator(cmd *cobra.Command, fn func(migrator) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m, err := newMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(m)
}

// migrateUp applies pending migrations for serve --auto-migrate.
func migrateUp(databaseURL string) (err error) {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return m.Up()
}
