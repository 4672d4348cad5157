// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package memory_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savika/savika/internal/gateway"
	"github.com/savika/savika/internal/gateway/memory"
)

var fastParams = memory.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

type capturedMail struct {
	email, token, redirectTo string
}

func newGateway(t *testing.T, opts ...memory.Option) (*memory.Gateway, *[]capturedMail) {
	t.Helper()
	var mails []capturedMail
	mailer := memory.MailerFunc(func(_ context.Context, email, token, redirectTo string) error {
		mails = append(mails, capturedMail{email, token, redirectTo})
		return nil
	})
	opts = append([]memory.Option{memory.WithArgon2Params(fastParams), memory.WithMailer(mailer)}, opts...)
	return memory.New(opts...), &mails
}

func recordEvents(gw *memory.Gateway) *[]gateway.EventKind {
	var kinds []gateway.EventKind
	gw.OnAuthEvent(func(e gateway.AuthEvent) { kinds = append(kinds, e.Kind) })
	return &kinds
}

func authCode(t *testing.T, err error) string {
	t.Helper()
	var authErr *gateway.AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
	return authErr.Code
}

func TestGateway_SignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	gw, _ := newGateway(t)
	events := recordEvents(gw)

	res, err := gw.SignUp(ctx, "Ana@Example.com", "Abcd123!", gateway.ProfileAttributes{FullName: "Ana Lopez"})
	require.NoError(t, err)
	assert.True(t, res.SessionIssued)
	assert.Equal(t, "ana@example.com", res.Email)
	require.NotNil(t, res.User)
	assert.Equal(t, "Ana Lopez", res.User.DisplayName)

	require.NoError(t, gw.SignOut(ctx))
	_, signedIn := gw.CurrentUser()
	assert.False(t, signedIn)

	user, err := gw.SignIn(ctx, "ana@example.com", "Abcd123!")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	assert.Equal(t, []gateway.EventKind{gateway.EventSignedIn, gateway.EventSignedOut, gateway.EventSignedIn}, *events)
}

func TestGateway_SignInRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	gw, _ := newGateway(t)
	_, err := gw.SignUp(ctx, "ana@example.com", "Abcd123!", gateway.ProfileAttributes{})
	require.NoError(t, err)

	_, err = gw.SignIn(ctx, "ana@example.com", "wrong")
	assert.Equal(t, gateway.CodeInvalidCredentials, authCode(t, err))

	_, err = gw.SignIn(ctx, "nobody@example.com", "Abcd123!")
	assert.Equal(t, gateway.CodeInvalidCredentials, authCode(t, err))
}

func TestGateway_DisplayNameFallsBackToLocalPart(t *testing.T) {
	gw, _ := newGateway(t)
	res, err := gw.SignUp(context.Background(), "ana.lopez@example.com", "Abcd123!", gateway.ProfileAttributes{})
	require.NoError(t, err)
	assert.Equal(t, "ana.lopez", res.User.DisplayName)
}

func TestGateway_DuplicateSignUp(t *testing.T) {
	ctx := context.Background()
	gw, _ := newGateway(t)
	_, err := gw.SignUp(ctx, "ana@example.com", "Abcd123!", gateway.ProfileAttributes{})
	require.NoError(t, err)

	_, err = gw.SignUp(ctx, "ANA@example.com", "Other123!", gateway.ProfileAttributes{})
	assert.Equal(t, gateway.CodeUserAlreadyExists, authCode(t, err))
}

func TestGateway_EmailConfirmationWithholdsSession(t *testing.T) {
	ctx := context.Background()
	gw, _ := newGateway(t, memory.WithEmailConfirmation(true))
	events := recordEvents(gw)

	res, err := gw.SignUp(ctx, "ana@example.com", "Abcd123!", gateway.ProfileAttributes{})
	require.NoError(t, err)
	assert.False(t, res.SessionIssued)
	assert.Empty(t, *events)

	_, err = gw.SignIn(ctx, "ana@example.com", "Abcd123!")
	assert.Equal(t, gateway.CodeEmailNotConfirmed, authCode(t, err))

	require.NoError(t, gw.Confirm("ana@example.com"))
	_, err = gw.SignIn(ctx, "ana@example.com", "Abcd123!")
	require.NoError(t, err)
}

func TestGateway_RecoveryFlow(t *testing.T) {
	ctx := context.Background()
	gw, mails := newGateway(t)
	_, err := gw.SignUp(ctx, "ana@example.com", "Abcd123!", gateway.ProfileAttributes{})
	require.NoError(t, err)
	require.NoError(t, gw.SignOut(ctx))
	events := recordEvents(gw)

	require.NoError(t, gw.RequestPasswordRecovery(ctx, "ana@example.com", "https://app.example.com/"))
	require.Len(t, *mails, 1)
	mail := (*mails)[0]
	assert.Equal(t, "https://app.example.com/", mail.redirectTo)

	err = gw.VerifyRecovery(ctx, "ana@example.com", strings.Repeat("0", len(mail.token)))
	assert.Equal(t, gateway.CodeOTPExpired, authCode(t, err))

	require.NoError(t, gw.VerifyRecovery(ctx, "ana@example.com", mail.token))
	require.NoError(t, gw.UpdatePassword(ctx, "Newpass9?"))
	require.NoError(t, gw.SignOut(ctx))

	_, err = gw.SignIn(ctx, "ana@example.com", "Abcd123!")
	require.Error(t, err)
	_, err = gw.SignIn(ctx, "ana@example.com", "Newpass9?")
	require.NoError(t, err)

	assert.Equal(t, []gateway.EventKind{
		gateway.EventPasswordRecovery,
		gateway.EventUserUpdated,
		gateway.EventSignedOut,
		gateway.EventSignedIn,
	}, *events)

	// Tokens are single use.
	err = gw.VerifyRecovery(ctx, "ana@example.com", mail.token)
	assert.Equal(t, gateway.CodeOTPExpired, authCode(t, err))
}

func TestGateway_RecoveryTokenExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	gw, mails := newGateway(t, memory.WithClock(func() time.Time { return now }))
	_, err := gw.SignUp(ctx, "ana@example.com", "Abcd123!", gateway.ProfileAttributes{})
	require.NoError(t, err)

	require.NoError(t, gw.RequestPasswordRecovery(ctx, "ana@example.com", ""))
	now = now.Add(memory.RecoveryTokenExpiry + time.Minute)

	err = gw.VerifyRecovery(ctx, "ana@example.com", (*mails)[0].token)
	assert.Equal(t, gateway.CodeOTPExpired, authCode(t, err))
}

func TestGateway_RecoveryForUnknownEmailIsSilent(t *testing.T) {
	gw, mails := newGateway(t)
	require.NoError(t, gw.RequestPasswordRecovery(context.Background(), "ghost@example.com", ""))
	assert.Empty(t, *mails)
}

func TestGateway_UpdatePasswordNeedsSession(t *testing.T) {
	gw, _ := newGateway(t)
	err := gw.UpdatePassword(context.Background(), "Abcd123!")
	assert.Equal(t, gateway.CodeSessionMissing, authCode(t, err))
}

func TestGateway_MailerFailure(t *testing.T) {
	ctx := context.Background()
	gw := memory.New(
		memory.WithArgon2Params(fastParams),
		memory.WithMailer(memory.MailerFunc(func(context.Context, string, string, string) error {
			return errors.New("smtp down")
		})),
	)
	_, err := gw.SignUp(ctx, "ana@example.com", "Abcd123!", gateway.ProfileAttributes{})
	require.NoError(t, err)

	err = gw.RequestPasswordRecovery(ctx, "ana@example.com", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestGateway_HandlerPanicUsesConfiguredLogger(t *testing.T) {
	var logs bytes.Buffer
	gw, _ := newGateway(t, memory.WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	gw.OnAuthEvent(func(gateway.AuthEvent) { panic("boom") })

	_, err := gw.SignUp(context.Background(), "ana@example.com", "Abcd123!", gateway.ProfileAttributes{})

	require.NoError(t, err)
	assert.Contains(t, logs.String(), "auth event handler panicked")
}
