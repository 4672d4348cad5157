// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package intake

import (
	"strings"

	"github.com/savika/savika/internal/credential"
)

// Flow names a credential form.
type Flow string

// Credential flows.
const (
	FlowRegistration  Flow = "registration"
	FlowLogin         Flow = "login"
	FlowRecovery      Flow = "recovery"
	FlowPasswordReset Flow = "password_reset"
)

// RegistrationForm is the sign-up form. Every field is required.
type RegistrationForm struct {
	Name            string
	Surname         string
	Email           string
	Password        string
	ConfirmPassword string
}

// FullName joins the trimmed name and surname.
func (f RegistrationForm) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(f.Name) + " " + strings.TrimSpace(f.Surname))
}

// LoginForm is the sign-in form.
type LoginForm struct {
	Email    string
	Password string
}

// RecoveryForm requests a password recovery email.
type RecoveryForm struct {
	Email string
}

// PasswordResetForm sets a new password inside a recovery session.
type PasswordResetForm struct {
	Password        string
	ConfirmPassword string
}

// Payload is the normalized data handed to the gateway after acceptance.
type Payload struct {
	Email    string
	Password string
	FullName string
}

// normalizedEmail trims and lowercases an email field.
func normalizedEmail(email string) string {
	return credential.NormalizeEmail(email)
}
