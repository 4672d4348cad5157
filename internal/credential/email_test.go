// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package credential_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/savika/savika/internal/credential"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple address", "ana@example.com", true},
		{"subdomain", "user@sub.example.co", true},
		{"uppercase is lowercased first", "Ana.Lopez@Example.COM", true},
		{"dotted local part", "first.last@example.org", true},
		{"plus tag", "user+tag@example.io", true},
		{"hyphenated domain", "user@my-host.example.net", true},
		{"quoted local part", `"john doe"@example.com`, true},
		{"ipv4 literal", "user@[192.168.0.1]", true},
		{"empty", "", false},
		{"double at", "user@@bad", false},
		{"no at", "not-an-email", false},
		{"no domain", "user@", false},
		{"no local part", "@example.com", false},
		{"single letter tld", "user@example.c", false},
		{"numeric tld", "user@example.123", false},
		{"leading dot", ".user@example.com", false},
		{"consecutive dots", "user..name@example.com", false},
		{"trailing dot in local part", "user.@example.com", false},
		{"space in local part", "us er@example.com", false},
		{"non-breaking space", "us\u00a0er@example.com", false},
		{"comma", "us,er@example.com", false},
		{"angle brackets", "<user>@example.com", false},
		{"domain without dot", "user@localhost", false},
		{"unterminated quote", `"user@example.com`, false},
		{"newline in quoted part", "\"a\nb\"@example.com", false},
		{"surrounding spaces", " ana@example.com ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, credential.ValidateEmail(tt.input))
		})
	}
}

func TestValidateEmail_Deterministic(t *testing.T) {
	inputs := []string{"", "ana@example.com", "user@@bad", `"q"@[10.0.0.1]`, "x@y.zz"}
	for _, in := range inputs {
		first := credential.ValidateEmail(in)
		for range 50 {
			assert.Equal(t, first, credential.ValidateEmail(in), "input %q", in)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", credential.NormalizeEmail("  Ana@Example.COM\t"))
	assert.Equal(t, "", credential.NormalizeEmail("   "))
}

func TestLocalPart(t *testing.T) {
	assert.Equal(t, "ana.lopez", credential.LocalPart("ana.lopez@example.com"))
	assert.Equal(t, "no-at", credential.LocalPart("no-at"))
	assert.Equal(t, "@leading", credential.LocalPart("@leading"))
}
