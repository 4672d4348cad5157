// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package credential

import "regexp"

// MaxScore is the score of a password that satisfies every rule.
const MaxScore = 5

// RuleID identifies a password composition rule.
type RuleID string

// Composition rules, in evaluation order.
const (
	RuleLength    RuleID = "length"
	RuleUppercase RuleID = "uppercase"
	RuleLowercase RuleID = "lowercase"
	RuleDigit     RuleID = "digit"
	RuleSymbol    RuleID = "symbol"
)

// Rule is a single password composition requirement.
type Rule struct {
	ID    RuleID
	Label string
	match *regexp.Regexp
}

// Met reports whether password satisfies the rule.
func (r Rule) Met(password string) bool {
	return r.match.MatchString(password)
}

var rules = [...]Rule{
	{ID: RuleLength, Label: "At least 8 characters", match: regexp.MustCompile(`.{8,}`)},
	{ID: RuleUppercase, Label: "One uppercase letter", match: regexp.MustCompile(`[A-Z]`)},
	{ID: RuleLowercase, Label: "One lowercase letter", match: regexp.MustCompile(`[a-z]`)},
	{ID: RuleDigit, Label: "One number", match: regexp.MustCompile(`[0-9]`)},
	{ID: RuleSymbol, Label: "One special symbol", match: regexp.MustCompile(`[^A-Za-z0-9]`)},
}

// Rules returns the composition rules in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules[:])
	return out
}

// Detail is the outcome of one rule for one password.
type Detail struct {
	Rule  RuleID `json:"rule"`
	Label string `json:"label"`
	Met   bool   `json:"met"`
}

// Strength is the scored breakdown of a password.
//
// Score always equals the number of details with Met set. Details follow the
// rule order for every non-empty password; the empty password has no details.
type Strength struct {
	Score   int      `json:"score"`
	Details []Detail `json:"details"`
}

// ScorePassword evaluates every rule against candidate. The empty string
// short-circuits to a zero score with no details at all.
func ScorePassword(candidate string) Strength {
	if candidate == "" {
		return Strength{Score: 0, Details: []Detail{}}
	}

	details := make([]Detail, 0, len(rules))
	score := 0
	for _, r := range rules {
		met := r.Met(candidate)
		if met {
			score++
		}
		details = append(details, Detail{Rule: r.ID, Label: r.Label, Met: met})
	}
	return Strength{Score: score, Details: details}
}

// Excellent reports whether every rule is satisfied. Forms only accept
// passwords for which this holds.
func (s Strength) Excellent() bool {
	return s.Score == MaxScore
}

// Band is the presentation class of a strength score.
type Band string

// Strength bands.
const (
	BandWeak      Band = "weak"
	BandMedium    Band = "medium"
	BandExcellent Band = "excellent"
)

// Band classifies the score: up to 2 is weak, 3 and 4 are medium, 5 is excellent.
func (s Strength) Band() Band {
	switch {
	case s.Score >= MaxScore:
		return BandExcellent
	case s.Score >= 3:
		return BandMedium
	default:
		return BandWeak
	}
}

// Unmet returns the labels of the rules the password does not satisfy.
func (s Strength) Unmet() []string {
	var out []string
	for _, d := range s.Details {
		if !d.Met {
			out = append(out, d.Label)
		}
	}
	return out
}
