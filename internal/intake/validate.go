// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package intake

import "github.com/savika/savika/internal/credential"

// ValidateRegistration checks, in order: name and surname present, email
// syntax, password strength of 5, and confirmation match. Fields are checked
// as entered; only the accepted payload is normalized.
func ValidateRegistration(f RegistrationForm) Outcome {
	if f.Name == "" || f.Surname == "" {
		return Reject(MissingIdentity)
	}
	if !credential.ValidateEmail(f.Email) {
		return Reject(InvalidEmail)
	}
	if !credential.ScorePassword(f.Password).Excellent() {
		return Reject(WeakPassword)
	}
	if f.Password != f.ConfirmPassword {
		return Reject(PasswordMismatch)
	}
	return Accept(Payload{Email: normalizedEmail(f.Email), Password: f.Password, FullName: f.FullName()})
}

// ValidateLogin checks email syntax and password presence together; either
// failing yields InvalidCredentialsFormat so the user is not told which.
func ValidateLogin(f LoginForm) Outcome {
	if !credential.ValidateEmail(f.Email) || f.Password == "" {
		return Reject(InvalidCredentialsFormat)
	}
	return Accept(Payload{Email: normalizedEmail(f.Email), Password: f.Password})
}

// ValidateRecovery checks email syntax.
func ValidateRecovery(f RecoveryForm) Outcome {
	if !credential.ValidateEmail(f.Email) {
		return Reject(InvalidEmail)
	}
	return Accept(Payload{Email: normalizedEmail(f.Email)})
}

// ValidatePasswordReset checks password strength of 5, then confirmation match.
func ValidatePasswordReset(f PasswordResetForm) Outcome {
	if !credential.ScorePassword(f.Password).Excellent() {
		return Reject(WeakPassword)
	}
	if f.Password != f.ConfirmPassword {
		return Reject(PasswordMismatch)
	}
	return Accept(Payload{Password: f.Password})
}
