// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package profile tracks which email addresses belong to registered accounts.
//
// The authentication provider does not reveal whether an email is registered,
// so sign-up records each address here and password recovery checks it first.
package profile

import (
	"context"
	"sync"

	"github.com/savika/savika/internal/credential"
)

// Directory records registered email addresses.
type Directory interface {
	// Exists reports whether email has a profile. Lookups are case-insensitive.
	Exists(ctx context.Context, email string) (bool, error)

	// Upsert records email. Recording an existing email is not an error.
	Upsert(ctx context.Context, email string) error
}

// MemoryDirectory is a Directory held in process memory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	emails map[string]struct{}
}

// NewMemoryDirectory creates a directory pre-populated with emails.
func NewMemoryDirectory(emails ...string) *MemoryDirectory {
	d := &MemoryDirectory{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		d.emails[credential.NormalizeEmail(e)] = struct{}{}
	}
	return d
}

// Exists implements Directory.
func (d *MemoryDirectory) Exists(_ context.Context, email string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.emails[credential.NormalizeEmail(email)]
	return ok, nil
}

// Upsert implements Directory.
func (d *MemoryDirectory) Upsert(_ context.Context, email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails[credential.NormalizeEmail(email)] = struct{}{}
	return nil
}
