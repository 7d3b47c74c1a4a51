// Package textnorm canonicalizes free text for keyword and similarity matching.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	separatorRun = regexp.MustCompile(`[\\/\-_*]+`)
	disallowed   = regexp.MustCompile(`[^a-z0-9.& ]+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Normalize lowercases s, turns separator runs into spaces, drops anything
// outside [a-z0-9.& ] and collapses whitespace.
func Normalize(s string) string {
	out := strings.ToLower(s)
	out = separatorRun.ReplaceAllString(out, " ")
	out = disallowed.ReplaceAllString(out, " ")
	return CollapseSpaces(out)
}

// CollapseSpaces folds whitespace runs to a single space and trims.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Join normalizes the space-joined parts.
func Join(parts ...string) string {
	return Normalize(strings.Join(parts, " "))
}

// ContainsAny reports whether any keyword is a substring of haystack.
// Matching is verbatim, not word-bounded.
func ContainsAny(haystack string, keywords []string) bool {
	if haystack == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// Tokens splits s on spaces and keeps tokens longer than minLen.
func Tokens(s string, minLen int) []string {
	var out []string
	for _, tok := range strings.Split(s, " ") {
		if len(tok) > minLen {
			out = append(out, tok)
		}
	}
	return out
}

// Jaccard returns the token-set similarity of a and b over tokens longer
// than two characters. Identical non-empty inputs score 1.
func Jaccard(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	setA := toSet(Tokens(a, 2))
	setB := toSet(Tokens(b, 2))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

var (
	recurrenceNoise = regexp.MustCompile(`\b(online|payment|receipt|thankyou|thank|from|to|card|ref|xxxx|x{2,}|transfer|a2a|osko)\b`)
	digitRun        = regexp.MustCompile(`\d+`)
)

// RecurrenceKey strips banking boilerplate and digits from normalized
// merchant text so charges from one merchant with different reference
// suffixes compare equal. Falls back to the input when nothing is left.
func RecurrenceKey(textMerchant string) string {
	out := recurrenceNoise.ReplaceAllString(textMerchant, " ")
	out = digitRun.ReplaceAllString(out, " ")
	out = CollapseSpaces(out)
	if out != "" {
		return out
	}
	return strings.TrimSpace(textMerchant)
}
