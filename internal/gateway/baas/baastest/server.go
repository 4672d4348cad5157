// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package baastest provides a fake GoTrue-compatible auth API for tests.
package baastest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

// AnonKey is the API key the fake server accepts by default.
//
//nolint:gosec // G101: test fixture
const AnonKey = "test-anon-key"

type user struct {
	id        string
	email     string
	password  string
	fullName  string
	confirmed bool
}

// Server is an in-memory auth API.
type Server struct {
	*httptest.Server

	anonKey     string
	autoConfirm bool

	mu         sync.Mutex
	users      map[string]*user
	tokens     map[string]string
	recoveries map[string]string
	redirects  map[string]string
	failures   []int
	requests   map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithAutoConfirm controls whether sign-up issues a session immediately.
func WithAutoConfirm(enabled bool) Option {
	return func(s *Server) { s.autoConfirm = enabled }
}

// Start runs a Server until the test ends.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		anonKey:     AnonKey,
		autoConfirm: true,
		users:       make(map[string]*user),
		tokens:      make(map[string]string),
		recoveries:  make(map[string]string),
		redirects:   make(map[string]string),
		requests:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count, s.injectFailures, s.requireAPIKey)
	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/token", s.handleToken)
		r.Post("/signup", s.handleSignUp)
		r.Post("/recover", s.handleRecover)
		r.Post("/verify", s.handleVerify)
		r.Put("/user", s.handleUpdateUser)
		r.Post("/logout", s.handleLogout)
	})
	return r
}

// AddUser registers a confirmed account.
func (s *Server) AddUser(email, password, fullName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	s.users[key] = &user{id: ulid.Make().String(), email: key, password: password, fullName: fullName, confirmed: true}
}

// Password returns the stored password for email.
func (s *Server) Password(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[strings.ToLower(email)]; ok {
		return u.password
	}
	return ""
}

// RecoveryToken returns the last recovery code issued for email.
func (s *Server) RecoveryToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoveries[strings.ToLower(email)]
}

// RecoveryRedirect returns the redirect_to of the last recovery request for email.
func (s *Server) RecoveryRedirect(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirects[strings.ToLower(email)]
}

// FailNext makes the next len(statuses) requests fail with the given statuses.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Requests returns how many requests reached "METHOD /path".
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// ActiveSessions returns the number of unrevoked access tokens.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var status int
		if len(s.failures) > 0 {
			status, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			writeError(w, status, "unexpected_failure", http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != s.anonKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentials struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data"`
	Type     string         `json:"type"`
	Token    string         `json:"token"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grant_type") != "password" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant type")
		return
	}
	var in credentials
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(in.Email)]
	if !ok || u.password != in.Password {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
		return
	}
	if !u.confirmed {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
		return
	}
	resp := s.issueLocked(u)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	if in.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "weak_password", "Password should not be empty")
		return
	}
	fullName, _ := in.Data["full_name"].(string)
	key := strings.ToLower(in.Email)

	s.mu.Lock()
	if _, taken := s.users[key]; taken {
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	u := &user{id: ulid.Make().String(), email: key, password: in.Password, fullName: fullName, confirmed: s.autoConfirm}
	s.users[key] = u
	if !s.autoConfirm {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, userJSON(u))
		return
	}
	resp := s.issueLocked(u)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	key := strings.ToLower(in.Email)

	s.mu.Lock()
	if _, ok := s.users[key]; ok {
		s.recoveries[key] = fmt.Sprintf("%06d", time.Now().UnixNano()%1_000_000)
		s.redirects[key] = r.URL.Query().Get("redirect_to")
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	key := strings.ToLower(in.Email)

	s.mu.Lock()
	want, ok := s.recoveries[key]
	if in.Type != "recovery" || !ok || want != in.Token {
		s.mu.Unlock()
		writeError(w, http.StatusForbidden, "otp_expired", "Token has expired or is invalid")
		return
	}
	delete(s.recoveries, key)
	u := s.users[key]
	u.confirmed = true
	resp := s.issueLocked(u)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.bearerUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "session_not_found", "Session from session_id claim in JWT does not exist")
		return
	}
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	if in.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "weak_password", "Password should not be empty")
		return
	}

	s.mu.Lock()
	u.password = in.Password
	out := userJSON(u)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	_, ok := s.tokens[token]
	delete(s.tokens, token)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusUnauthorized, "session_not_found", "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bearerUser(r *http.Request) (*user, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	u, ok := s.users[email]
	return u, ok
}

func (s *Server) issueLocked(u *user) map[string]any {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)
	s.tokens[token] = u.email
	return map[string]any{
		"access_token":  token,
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    time.Now().Add(time.Hour).Unix(),
		"refresh_token": ulid.Make().String(),
		"user":          userJSON(u),
	}
}

func userJSON(u *user) map[string]any {
	meta := map[string]any{}
	if u.fullName != "" {
		meta["full_name"] = u.fullName
	}
	return map[string]any{"id": u.id, "email": u.email, "user_metadata": meta}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Could not read request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "error_code": code, "msg": msg})
}

func writeOAuthError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, map[string]any{"error": code, "error_description": desc})
}
