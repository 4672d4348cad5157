// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package memory provides an in-process authentication provider.
//
// It keeps accounts in memory, hashes passwords with argon2id and hands
// recovery tokens to a Mailer instead of sending email. It backs local runs of
// the savika shell and tests that need real provider behavior.
package memory

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/savika/savika/internal/credential"
	"github.com/savika/savika/internal/gateway"
)

// dummyHash is verified when an account does not exist so that unknown and
// known emails take the same time to reject.
//
//nolint:gosec // G101: fake hash, never matches any password
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type account struct {
	user      gateway.User
	fullName  string
	hash      string
	confirmed bool
	createdAt time.Time
}

// Gateway is an in-memory gateway.Gateway.
type Gateway struct {
	*gateway.Hub

	mu         sync.Mutex
	accounts   map[string]*account
	recoveries map[string]recoveryGrant
	current    *gateway.User

	hasher              hasher
	mailer              Mailer
	requireConfirmation bool
	now                 func() time.Time
	logger              *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMailer sets the recovery mailer. The default logs tokens.
func WithMailer(m Mailer) Option {
	return func(g *Gateway) { g.mailer = m }
}

// WithEmailConfirmation makes SignUp withhold the session until Confirm is called.
func WithEmailConfirmation(required bool) Option {
	return func(g *Gateway) { g.requireConfirmation = required }
}

// WithArgon2Params overrides the password hashing cost.
func WithArgon2Params(p Argon2Params) Option {
	return func(g *Gateway) { g.hasher = hasher{params: p} }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithLogger sets the logger for event delivery and the default mailer.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates an empty in-memory gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		accounts:   make(map[string]*account),
		recoveries: make(map[string]recoveryGrant),
		hasher:     hasher{params: DefaultArgon2Params},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.mailer == nil {
		g.mailer = LogMailer{Logger: g.logger}
	}
	g.Hub = gateway.NewHub(gateway.WithHubLogger(g.logger))
	return g
}

var _ gateway.Gateway = (*Gateway)(nil)
var _ gateway.RecoveryVerifier = (*Gateway)(nil)

// SignIn verifies the password and makes the account the current session.
func (g *Gateway) SignIn(_ context.Context, email, password string) (*gateway.User, error) {
	key := credential.NormalizeEmail(email)

	g.mu.Lock()
	acct, exists := g.accounts[key]
	target := dummyHash
	if exists {
		target = acct.hash
	}
	g.mu.Unlock()

	valid, err := g.hasher.verify(password, target)
	if err != nil && exists {
		return nil, oops.Code("MEMORY_GATEWAY_SIGN_IN_FAILED").With("email", key).Wrap(err)
	}
	if !exists || !valid {
		return nil, &gateway.AuthError{Status: http.StatusBadRequest, Code: gateway.CodeInvalidCredentials, Message: "Invalid login credentials"}
	}

	g.mu.Lock()
	if !acct.confirmed {
		g.mu.Unlock()
		return nil, &gateway.AuthError{Status: http.StatusBadRequest, Code: gateway.CodeEmailNotConfirmed, Message: "Email not confirmed"}
	}
	user := acct.user
	g.current = &user
	g.mu.Unlock()

	g.Publish(gateway.EventSignedIn, &user)
	return &user, nil
}

// SignUp creates a new account.
func (g *Gateway) SignUp(_ context.Context, email, password string, attrs gateway.ProfileAttributes) (*gateway.SignUpResult, error) {
	key := credential.NormalizeEmail(email)
	if !credential.ValidateEmail(key) {
		return nil, &gateway.AuthError{Status: http.StatusBadRequest, Code: gateway.CodeValidationFailed, Message: "Unable to validate email address: invalid format"}
	}
	if password == "" {
		return nil, &gateway.AuthError{Status: http.StatusUnprocessableEntity, Code: gateway.CodeWeakPassword, Message: "Password should not be empty"}
	}

	confirmed := !g.requireConfirmation
	acct, err := g.create(key, password, attrs.FullName, confirmed)
	if err != nil {
		return nil, err
	}

	user := acct.user
	result := &gateway.SignUpResult{SessionIssued: confirmed, Email: key, User: &user}
	if confirmed {
		g.mu.Lock()
		g.current = &user
		g.mu.Unlock()
		g.Publish(gateway.EventSignedIn, &user)
	}
	return result, nil
}

func (g *Gateway) create(key, password, fullName string, confirmed bool) (*account, error) {
	hash, err := g.hasher.hash(password)
	if err != nil {
		return nil, oops.Code("MEMORY_GATEWAY_SIGN_UP_FAILED").With("email", key).Wrap(err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, taken := g.accounts[key]; taken {
		return nil, &gateway.AuthError{Status: http.StatusUnprocessableEntity, Code: gateway.CodeUserAlreadyExists, Message: "User already registered"}
	}
	acct := &account{
		user: gateway.User{
			ID:          ulid.Make().String(),
			DisplayName: displayName(fullName, key),
			Email:       key,
		},
		fullName:  fullName,
		hash:      hash,
		confirmed: confirmed,
		createdAt: g.now(),
	}
	g.accounts[key] = acct
	return acct, nil
}

// Confirm marks an account as confirmed, as if the confirmation email had been opened.
func (g *Gateway) Confirm(email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[credential.NormalizeEmail(email)]
	if !ok {
		return oops.Code("MEMORY_GATEWAY_UNKNOWN_ACCOUNT").With("email", email).Errorf("no such account")
	}
	acct.confirmed = true
	return nil
}

// RequestPasswordRecovery issues a recovery token through the mailer. Unknown
// emails succeed silently, as hosted providers do.
func (g *Gateway) RequestPasswordRecovery(ctx context.Context, email, redirectTo string) error {
	key := credential.NormalizeEmail(email)

	g.mu.Lock()
	_, exists := g.accounts[key]
	g.mu.Unlock()
	if !exists {
		return nil
	}

	token, hash, err := generateRecoveryToken()
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.recoveries[key] = recoveryGrant{tokenHash: hash, redirectTo: redirectTo, expiresAt: g.now().Add(RecoveryTokenExpiry)}
	g.mu.Unlock()

	if err := g.mailer.SendRecovery(ctx, key, token, redirectTo); err != nil {
		return oops.Code("MEMORY_GATEWAY_MAIL_FAILED").With("email", key).Wrap(err)
	}
	return nil
}

// VerifyRecovery exchanges a recovery token for a session and emits
// gateway.EventPasswordRecovery.
func (g *Gateway) VerifyRecovery(_ context.Context, email, token string) error {
	key := credential.NormalizeEmail(email)

	g.mu.Lock()
	grant, ok := g.recoveries[key]
	if !ok || !matchRecoveryToken(token, grant.tokenHash) {
		g.mu.Unlock()
		return &gateway.AuthError{Status: http.StatusForbidden, Code: gateway.CodeOTPExpired, Message: "Token has expired or is invalid"}
	}
	delete(g.recoveries, key)
	if grant.expired(g.now()) {
		g.mu.Unlock()
		return &gateway.AuthError{Status: http.StatusForbidden, Code: gateway.CodeOTPExpired, Message: "Token has expired or is invalid"}
	}
	acct := g.accounts[key]
	user := acct.user
	acct.confirmed = true
	g.current = &user
	g.mu.Unlock()

	g.Publish(gateway.EventPasswordRecovery, &user)
	return nil
}

// UpdatePassword replaces the password of the current session's account.
func (g *Gateway) UpdatePassword(_ context.Context, newPassword string) error {
	if newPassword == "" {
		return &gateway.AuthError{Status: http.StatusUnprocessableEntity, Code: gateway.CodeWeakPassword, Message: "Password should not be empty"}
	}

	g.mu.Lock()
	current := g.current
	g.mu.Unlock()
	if current == nil {
		return &gateway.AuthError{Status: http.StatusUnauthorized, Code: gateway.CodeSessionMissing, Message: "Auth session missing"}
	}

	hash, err := g.hasher.hash(newPassword)
	if err != nil {
		return oops.Code("MEMORY_GATEWAY_UPDATE_FAILED").With("user_id", current.ID).Wrap(err)
	}

	g.mu.Lock()
	acct, ok := g.accounts[current.Email]
	if ok {
		acct.hash = hash
	}
	g.mu.Unlock()
	if !ok {
		return &gateway.AuthError{Status: http.StatusNotFound, Code: gateway.CodeSessionMissing, Message: "User from session does not exist"}
	}

	g.Publish(gateway.EventUserUpdated, current)
	return nil
}

// SignOut clears the current session.
func (g *Gateway) SignOut(_ context.Context) error {
	g.mu.Lock()
	g.current = nil
	g.mu.Unlock()

	g.Publish(gateway.EventSignedOut, nil)
	return nil
}

// CurrentUser returns the user of the current session, if any.
func (g *Gateway) CurrentUser() (*gateway.User, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return nil, false
	}
	user := *g.current
	return &user, true
}

func displayName(fullName, email string) string {
	if fullName != "" {
		return fullName
	}
	return credential.LocalPart(email)
}
