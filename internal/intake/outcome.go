// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package intake

import "github.com/savika/savika/internal/gateway"

// Reason is why a submission was rejected.
type Reason string

// Rejection reasons. All but GatewayError are decided locally, before any
// gateway call.
const (
	MissingIdentity          Reason = "missing_identity"
	InvalidEmail             Reason = "invalid_email"
	WeakPassword             Reason = "weak_password"
	PasswordMismatch         Reason = "password_mismatch"
	InvalidCredentialsFormat Reason = "invalid_credentials_format"
	AccountNotFound          Reason = "account_not_found"
	GatewayError             Reason = "gateway_error"
)

var reasonMessages = map[Reason]string{
	MissingIdentity:          "Please enter your name and surname.",
	InvalidEmail:             "Please enter a valid email address.",
	WeakPassword:             "The password is too weak.",
	PasswordMismatch:         "The passwords do not match.",
	InvalidCredentialsFormat: "Please check your credentials.",
	AccountNotFound:          "No account is associated with this email address.",
	GatewayError:             "The request could not be completed. Please try again.",
}

// Message is the user-facing text for the reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// Local reports whether the reason is decided without contacting the gateway.
func (r Reason) Local() bool {
	return r != GatewayError && r != ""
}

// Outcome is the result of one submit attempt: either accepted with a
// normalized payload, or rejected with a reason.
type Outcome struct {
	Accepted bool
	Reason   Reason
	Payload  Payload

	// Message is the text to display for a rejection.
	Message string
}

// Accept builds an accepted outcome.
func Accept(p Payload) Outcome {
	return Outcome{Accepted: true, Payload: p}
}

// Reject builds a locally rejected outcome.
func Reject(r Reason) Outcome {
	return Outcome{Reason: r, Message: r.Message()}
}

// RejectGateway builds the outcome for a gateway failure with a display message.
func RejectGateway(message string) Outcome {
	if message == "" {
		message = GatewayError.Message()
	}
	return Outcome{Reason: GatewayError, Message: message}
}

// Label is the metric label for the outcome.
func (o Outcome) Label() string {
	if o.Accepted {
		return "accepted"
	}
	return string(o.Reason)
}

// Result is an outcome after the gateway has been consulted.
type Result struct {
	Outcome

	// User is set after a login, or a registration that issued a session.
	User *gateway.User

	// ConfirmationPending is set when registration succeeded but the provider
	// requires the email address to be confirmed before signing in.
	ConfirmationPending bool
}
