// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package credential implements the client-side credential checks used by
// every SAVIKA form: syntactic email validation and password strength scoring.
//
// Both checks are pure functions. They never block, never fail and keep no
// state between calls, so they are safe to run on every keystroke.
package credential
