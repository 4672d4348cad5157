// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd(deps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the profile database schema",
		Long: `Manage the PostgreSQL profile directory schema. The database URL comes
from profiles.database_url, SAVIKA_PROFILES__DATABASE_URL or --database-url.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL for the profile directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if dirty {
					cmd.Printf("version %d (dirty)\n", v)
				} else {
					cmd.Printf("version %d\n", v)
				}
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Profiles.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			Hint("set profiles.database_url or pass --database-url").
			Errorf("database URL is required")
	}

	m, err := deps.MigratorFactory(cfg.Profiles.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()

	return fn(m)
}
