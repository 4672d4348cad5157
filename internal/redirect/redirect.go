// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package redirect restricts where recovery links may send the user back to.
package redirect

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Policy is an allow-list of redirect URL patterns. Patterns use glob syntax
// with '.', '/' and ':' as separators, so "https://*.example.com/**" matches any
// path on any direct subdomain. An empty policy allows every target.
type Policy struct {
	patterns []string
	globs    []glob.Glob
}

// NewPolicy compiles patterns.
func NewPolicy(patterns []string) (*Policy, error) {
	p := &Policy{patterns: make([]string, 0, len(patterns))}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.', '/', ':')
		if err != nil {
			return nil, oops.Code("REDIRECT_PATTERN_INVALID").With("pattern", pattern).Wrap(err)
		}
		p.patterns = append(p.patterns, pattern)
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// Allowed reports whether target matches the allow-list.
func (p *Policy) Allowed(target string) bool {
	if p == nil || len(p.globs) == 0 {
		return true
	}
	for _, g := range p.globs {
		if g.Match(target) {
			return true
		}
	}
	return false
}

// Resolve returns target when it is allowed and fallback otherwise.
func (p *Policy) Resolve(target, fallback string) string {
	if target != "" && p.Allowed(target) {
		return target
	}
	return fallback
}

// Patterns returns the configured patterns.
func (p *Policy) Patterns() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.patterns...)
}
