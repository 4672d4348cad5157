// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package postgres stores profiles in PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/savika/savika/internal/credential"
	"github.com/savika/savika/internal/profile"
)

// Pool is the subset of pgxpool.Pool used by Directory. pgxmock.PgxPoolIface
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Directory implements profile.Directory on the profiles table.
type Directory struct {
	pool Pool
}

var _ profile.Directory = (*Directory)(nil)

// NewDirectory creates a Directory over pool.
func NewDirectory(pool Pool) *Directory {
	return &Directory{pool: pool}
}

// Exists implements profile.Directory.
func (d *Directory) Exists(ctx context.Context, email string) (bool, error) {
	key := credential.NormalizeEmail(email)

	var found string
	err := d.pool.QueryRow(ctx, `SELECT email FROM profiles WHERE email = $1`, key).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify(err, "PROFILE_LOOKUP_FAILED").With("email", key).Wrap(err)
	}
	return true, nil
}

// Upsert implements profile.Directory. A duplicate email is treated as success.
func (d *Directory) Upsert(ctx context.Context, email string) error {
	key := credential.NormalizeEmail(email)

	_, err := d.pool.Exec(ctx, `INSERT INTO profiles (email) VALUES ($1)`, key)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return nil
	}
	return classify(err, "PROFILE_UPSERT_FAILED").With("email", key).Wrap(err)
}

// classify picks the error code, pointing at missing migrations when the table is absent.
func classify(err error, fallback string) oops.OopsErrorBuilder {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return oops.Code("PROFILE_SCHEMA_MISSING").Hint("run `savika migrate up`")
	}
	return oops.Code(fallback)
}
