// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savika/savika/internal/observability"
	"github.com/savika/savika/internal/profile/postgres"
)

// ShellDeps contains injectable dependencies for the shell command.
// All fields with nil values will use their default implementations.
type ShellDeps struct {
	// Stdin is read for shell commands.
	// Default: cmd.InOrStdin()
	Stdin io.Reader

	// PoolFactory opens the profile database.
	// Default: pgxpool.New
	PoolFactory func(ctx context.Context, url string) (Pool, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServerWithLogger
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// SessionFileGetter returns the default session file path.
	// Default: defaultSessionFile, which creates the XDG state directory
	SessionFileGetter func() (string, error)
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// MigratorFactory creates a profile schema migrator.
	// Default: postgres.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

// Pool is the profile database pool used by the shell.
type Pool interface {
	postgres.Pool
	Close()
}

// Migrator wraps the methods used from postgres.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *ShellDeps) withDefaults(stdin io.Reader) *ShellDeps {
	out := ShellDeps{}
	if d != nil {
		out = *d
	}
	if out.Stdin == nil {
		out.Stdin = stdin
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string) (Pool, error) {
			p, err := pgxpool.New(ctx, url)
			if err != nil {
				return nil, err
			}
			return p, nil
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServerWithLogger(addr, ready, logger)
		}
	}
	if out.SessionFileGetter == nil {
		out.SessionFileGetter = defaultSessionFile
	}
	return &out
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			m, err := postgres.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return &out
}
