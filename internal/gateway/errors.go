// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package gateway

import (
	"errors"
	"fmt"
)

// Provider error codes shared by the gateway implementations.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeWeakPassword       = "weak_password"
	CodeSessionMissing     = "session_not_found"
	CodeOTPExpired         = "otp_expired"
	CodeValidationFailed   = "validation_failed"
	CodeUnexpected         = "unexpected_failure"
)

// AuthError is a request the provider rejected. Message is the provider's own
// text; it is meant for logs, not for display.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("auth provider: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("auth provider: %s (code %s)", e.Message, e.Code)
}

// ErrorCode returns the provider code carried by err, or "" when err is not an AuthError.
func ErrorCode(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}
