// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package gateway defines the boundary to the hosted authentication provider.
//
// Every credential operation that needs a server (sign-in, sign-up, recovery
// email, password update, sign-out) goes through the Gateway interface.
// Implementations live in sub-packages:
//   - baas - HTTPS client for a GoTrue-compatible provider
//   - memory - in-process provider used for local runs and tests
package gateway

import (
	"context"
	"time"
)

// User is the identity returned by a successful sign-in.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// ProfileAttributes are extra user attributes stored by the provider at sign-up.
type ProfileAttributes struct {
	FullName string `json:"full_name,omitempty"`
}

// SignUpResult describes the account created by SignUp.
// SessionIssued is false when the provider requires email confirmation
// before the first sign-in.
type SignUpResult struct {
	SessionIssued bool
	Email         string
	User          *User
}

// EventKind names a session lifecycle event.
type EventKind string

// Session lifecycle events.
const (
	EventSignedIn         EventKind = "SIGNED_IN"
	EventSignedOut        EventKind = "SIGNED_OUT"
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
	EventUserUpdated      EventKind = "USER_UPDATED"
)

// AuthEvent is delivered to handlers registered with OnAuthEvent.
type AuthEvent struct {
	Kind EventKind
	User *User
	At   time.Time
}

// Handler receives auth events. Handlers run on the goroutine that produced
// the event and must not block.
type Handler func(AuthEvent)

// Subscription is the handle returned by OnAuthEvent.
type Subscription interface {
	// Unsubscribe stops delivery to the handler. It is safe to call more than once.
	Unsubscribe()
}

// Gateway is the authentication provider contract.
type Gateway interface {
	// SignIn authenticates with email and password and establishes a session.
	SignIn(ctx context.Context, email, password string) (*User, error)

	// SignUp creates an account. A session is only established when the
	// provider does not require email confirmation.
	SignUp(ctx context.Context, email, password string, attrs ProfileAttributes) (*SignUpResult, error)

	// RequestPasswordRecovery asks the provider to email a recovery link that
	// returns the user to redirectTo.
	RequestPasswordRecovery(ctx context.Context, email, redirectTo string) error

	// UpdatePassword changes the password of the current session's user.
	UpdatePassword(ctx context.Context, newPassword string) error

	// OnAuthEvent registers a handler for session lifecycle events.
	OnAuthEvent(handler Handler) Subscription

	// SignOut ends the current session.
	SignOut(ctx context.Context) error
}

// RecoveryVerifier is implemented by gateways that can exchange the one-time
// token from a recovery email for a recovery session. A successful exchange
// emits EventPasswordRecovery.
type RecoveryVerifier interface {
	VerifyRecovery(ctx context.Context, email, token string) error
}
