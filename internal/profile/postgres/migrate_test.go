// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package postgres

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savika/savika/pkg/errutil"
)

type fakeMigrate struct {
	upErr, downErr  error
	version         uint
	dirty           bool
	versionErr      error
	srcErr, dbErr   error
	upCalls, downed int
}

func (f *fakeMigrate) Up() error   { f.upCalls++; return f.upErr }
func (f *fakeMigrate) Down() error { f.downed++; return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}
func (f *fakeMigrate) Close() (error, error) { return f.srcErr, f.dbErr }

func TestMigrator_UpIgnoresNoChange(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}
	require.NoError(t, m.Up())

	m = &Migrator{m: &fakeMigrate{upErr: errors.New("lock timeout")}}
	err := m.Up()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
}

func TestMigrator_Down(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}
	require.NoError(t, m.Down())
	assert.Equal(t, 1, fake.downed)

	m = &Migrator{m: &fakeMigrate{downErr: errors.New("boom")}}
	errutil.AssertErrorCode(t, m.Down(), "MIGRATION_DOWN_FAILED")
}

func TestMigrator_Version(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	m = &Migrator{m: &fakeMigrate{version: 1, dirty: true}}
	v, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.True(t, dirty)
}

func TestMigrator_CloseJoinsErrors(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{srcErr: errors.New("source"), dbErr: errors.New("database")}}
	err := m.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
	assert.Contains(t, err.Error(), "database")
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@host/db", migrateURL("postgres://u:p@host/db"))
	assert.Equal(t, "pgx5://u:p@host/db", migrateURL("postgresql://u:p@host/db"))
	assert.Equal(t, "pgx5://host/db", migrateURL("pgx5://host/db"))
}

func TestMigrationsFS_PairsUpAndDown(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case len(e.Name()) > 7 && e.Name()[len(e.Name())-7:] == ".up.sql":
			ups++
		case len(e.Name()) > 9 && e.Name()[len(e.Name())-9:] == ".down.sql":
			downs++
		}
	}
	assert.Equal(t, ups, downs)
	assert.Positive(t, ups)
}
