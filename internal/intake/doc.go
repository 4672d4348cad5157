// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package intake decides whether a credential form may be submitted and, if
// so, submits it to the authentication gateway.
//
// # Validation
//
// ValidateRegistration, ValidateLogin, ValidateRecovery and
// ValidatePasswordReset are pure functions over a typed form. Checks run in a
// fixed order and the first failing check decides the Reason.
//
// # Submission
//
// Service runs validation and, on acceptance, calls the gateway. Gateway
// failures become a GatewayError outcome with a generic message; they are
// logged, never returned as errors.
//
// Form wraps a Service for one form instance: it allows a single submission
// in flight, ignores submits while one is outstanding, and drops results that
// arrive after Detach.
package intake
