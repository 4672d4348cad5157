// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package credential

import (
	"regexp"
	"strings"
)

// emailPattern accepts local-part@domain where the local part is either a run
// of dot-separated atoms or a quoted string, and the domain is either a
// bracketed IPv4 literal or dotted labels ending in at least two letters.
//
// The whitespace class covers ASCII whitespace, vertical tab, Unicode
// separators and the byte-order mark. Quoted local parts may contain anything
// except line terminators.
var emailPattern = regexp.MustCompile(
	`^(([^<>()\[\]\\.,;:\s\v\p{Z}\x{FEFF}@"]+(\.[^<>()\[\]\\.,;:\s\v\p{Z}\x{FEFF}@"]+)*)|("[^\n\r\x{2028}\x{2029}]+"))` +
		`@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`,
)

// ValidateEmail reports whether candidate is a syntactically valid email
// address. The candidate is lowercased before matching. No DNS or mailbox
// check is made.
func ValidateEmail(candidate string) bool {
	return emailPattern.MatchString(strings.ToLower(candidate))
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LocalPart returns the part of email before the first '@', or the whole
// string when there is no '@' past the first character.
func LocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
