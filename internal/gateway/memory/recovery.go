// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package memory

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Recovery token configuration.
const (
	RecoveryTokenBytes  = 16
	RecoveryTokenExpiry = time.Hour
)

// Mailer delivers recovery tokens. The memory gateway never sends real mail.
type Mailer interface {
	SendRecovery(ctx context.Context, email, token, redirectTo string) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, email, token, redirectTo string) error

// SendRecovery calls f.
func (f MailerFunc) SendRecovery(ctx context.Context, email, token, redirectTo string) error {
	return f(ctx, email, token, redirectTo)
}

// LogMailer writes recovery tokens to the logger at info level.
type LogMailer struct {
	Logger *slog.Logger
}

// SendRecovery logs the token.
func (m LogMailer) SendRecovery(ctx context.Context, email, token, redirectTo string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "recovery token issued",
		"email", email,
		"token", token,
		"redirect_to", redirectTo,
	)
	return nil
}

type recoveryGrant struct {
	tokenHash  string
	redirectTo string
	expiresAt  time.Time
}

func (g recoveryGrant) expired(now time.Time) bool {
	return now.After(g.expiresAt)
}

// generateRecoveryToken returns a random token and the hash kept by the gateway.
func generateRecoveryToken() (token, hash string, err error) {
	buf := make([]byte, RecoveryTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("RECOVERY_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, hashRecoveryToken(token), nil
}

func hashRecoveryToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func matchRecoveryToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashRecoveryToken(token)), []byte(hash)) == 1
}
