// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package baas

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/savika/savika/internal/gateway"
)

// Session is an authenticated provider session.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         gateway.User `json:"user"`
}

// Expired reports whether the access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionStore persists the current session between runs.
type SessionStore interface {
	// Load returns the stored session, or nil when there is none.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in memory only.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// Load implements SessionStore.
func (m *MemoryStore) Load(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

// Save implements SessionStore.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *s
	m.session = &saved
	return nil
}

// Clear implements SessionStore.
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// FileStore keeps the session in a JSON file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the session file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load implements SessionStore.
func (f *FileStore) Load(context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_LOAD_FAILED").With("path", f.path).Wrap(err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("path", f.path).
			Hint("delete the session file and sign in again").
			Wrap(err)
	}
	return &s, nil
}

// Save implements SessionStore. The file is replaced atomically.
func (f *FileStore) Save(_ context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return oops.Code("SESSION_SAVE_FAILED").Wrap(err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").With("path", f.path).Wrap(err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return oops.Code("SESSION_SAVE_FAILED").With("path", f.path).Wrap(err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code("SESSION_SAVE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}

// Clear implements SessionStore.
func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("SESSION_CLEAR_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}
