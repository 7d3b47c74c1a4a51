// Package merchant derives canonical merchant lookup keys and groups
// transactions by counterparty.
package merchant

import (
	"regexp"
	"slices"
	"strings"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/textnorm"
)

// InternalTransferKey is the synthetic key for movements between the taxpayer's own accounts.
const InternalTransferKey = "internal transfer"

// fallbackKeyLen caps keys built from raw normalized text.
const fallbackKeyLen = 80

// Alias maps a merchant pattern to a canonical key.
type Alias struct {
	Key     string
	Pattern *regexp.Regexp
}

// Matches reports whether text carries the alias pattern.
func (a Alias) Matches(text string) bool {
	return a.Pattern.MatchString(text)
}

// Aliases is evaluated top to bottom. More specific patterns must precede
// general ones ("uber eats" before "uber").
var Aliases = []Alias{
	{"transport for nsw", regexp.MustCompile(`\btransport\s*for\s*nsw\b`)},
	{"officeworks", regexp.MustCompile(`\bofficeworks\b`)},
	{"medrecruit", regexp.MustCompile(`\bmedrecruit\b`)},
	{"nsw health", regexp.MustCompile(`\bnsw\s*health\b|\bnswhealth\b`)},
	{"eyex australia", regexp.MustCompile(`\beyex\b`)},
	{"google", regexp.MustCompile(`\bgoogle\b|\bg\.co\b`)},
	{"paypal", regexp.MustCompile(`\bpaypal\b`)},
	{"tpg internet", regexp.MustCompile(`\btpg\b`)},
	{"ato", regexp.MustCompile(`\bato\b|\btax office\b`)},
	{"american express", regexp.MustCompile(`\bamerican express\b|\bamex\b`)},
	{"uber eats", regexp.MustCompile(`\buber\s*eats\b`)},
	{"uber", regexp.MustCompile(`\buber\b`)},
	{"xero", regexp.MustCompile(`\bxero\b`)},
	{"crypto.com", regexp.MustCompile(`\bcrypto\.?\s*com\b`)},
	{"spaceship", regexp.MustCompile(`\bspaceship\b`)},
	{"raiz", regexp.MustCompile(`\braiz\b`)},
	{"koinly", regexp.MustCompile(`\bkoinly\b`)},
	{"mda", regexp.MustCompile(`\bmda\b`)},
	{"ranzco", regexp.MustCompile(`\branzco\b`)},
}

// prefixCleanup rewrites known processor and compacted-name prefixes.
var prefixCleanup = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`^transportfornsw`), "transport for nsw"},
	{regexp.MustCompile(`^paypal\s+\*?\s*`), ""},
	{regexp.MustCompile(`^google\s+\*?\s*`), "google "},
}

var (
	transferSignal   = regexp.MustCompile(`\b(a2a|transfer|osko|round up|internal|savings maximiser|orange everyday|offset)\b`)
	externalMerchant = regexp.MustCompile(`\b(officeworks|medrecruit|google|tpg|transport for nsw|uber|paypal|xero|ato|eyex|nsw health|spaceship|raiz|koinly|mda|ranzco|woolworths|coles|aldi)\b`)
	monthToken       = regexp.MustCompile(`^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)$`)
	digitToken       = regexp.MustCompile(`^[a-z]*\d+[a-z0-9]*$`)
	maskedToken      = regexp.MustCompile(`^x{2,}\d*$`)
)

var stopwords = toSet(
	"online", "payment", "payments", "receipt", "received", "thankyou", "thank", "date",
	"card", "debit", "credit", "from", "to", "ref", "help", "time", "eftpos", "purchase",
	"tap", "transfer", "funds", "internal", "a2a", "osko", "bpay", "bulk", "return",
	"returned", "bank", "transaction",
)

var legalSuffixes = toSet(
	"pty", "ltd", "limited", "co", "company", "inc", "llc", "plc", "corp", "corporation",
	"australia", "australian", "au", "group", "holdings", "trust", "trustee", "unit", "the",
)

var tokenCanon = map[string]string{
	"austral":         "australia",
	"nswhealth":       "nsw health",
	"transportfornsw": "transport for nsw",
}

// tokenOverrides force a key when a token combination is present, so word
// order in the raw text cannot split one entity across keys.
var tokenOverrides = []struct {
	all []string
	key string
}{
	{[]string{"eyex"}, "eyex australia"},
	{[]string{"officeworks"}, "officeworks"},
	{[]string{"medrecruit"}, "medrecruit"},
	{[]string{"google"}, "google"},
	{[]string{"transport", "nsw"}, "transport for nsw"},
	{[]string{"nsw", "health"}, "nsw health"},
	{[]string{"tpg"}, "tpg internet"},
}

// DeriveLookupKey returns the canonical lookup key for a raw merchant string.
// Many raw strings intentionally share one key. The result is empty only
// when raw normalizes to nothing.
func DeriveLookupKey(raw string) string {
	normalized := textnorm.Normalize(raw)
	if normalized == "" {
		return ""
	}
	cleaned := cleanPrefixes(normalized)

	if alias, ok := rules.FirstMatch(Aliases, cleaned); ok {
		return alias.Key
	}

	if IsLikelyInternalTransfer(cleaned) {
		return InternalTransferKey
	}

	tokens := strongTokens(cleaned)
	if len(tokens) == 0 {
		return truncate(normalized, fallbackKeyLen)
	}

	for _, o := range tokenOverrides {
		if containsAll(tokens, o.all) {
			return o.key
		}
	}

	chosen := dropLegalSuffixes(tokens)
	if len(chosen) == 1 {
		return chosen[0]
	}
	return strings.Join(chosen[:2], " ")
}

// DeriveLookupName returns a longer display name (up to four strong tokens)
// suitable for business-registry queries.
func DeriveLookupName(raw string) string {
	normalized := textnorm.Normalize(raw)
	if normalized == "" {
		return ""
	}
	tokens := strongTokens(cleanPrefixes(normalized))
	if len(tokens) == 0 {
		return truncate(normalized, fallbackKeyLen)
	}
	if len(tokens) > 4 {
		tokens = tokens[:4]
	}
	return strings.Join(tokens, " ")
}

// IsLikelyInternalTransfer reports whether text carries transfer-intent
// wording and names no known external merchant.
func IsLikelyInternalTransfer(text string) bool {
	value := textnorm.Normalize(text)
	if value == "" || !transferSignal.MatchString(value) {
		return false
	}
	return !externalMerchant.MatchString(value)
}

var (
	loanDrawdown  = regexp.MustCompile(`\bloan drawdown\b`)
	loanRepayment = regexp.MustCompile(`\bloan repayment\b`)
)

// IsSynthetic reports whether key names a banking event rather than a real
// counterparty. Synthetic keys are never sent for external lookup.
func IsSynthetic(key string) bool {
	value := textnorm.Normalize(key)
	switch {
	case value == "":
		return false
	case value == InternalTransferKey, value == "withdrawal":
		return true
	case loanDrawdown.MatchString(value), loanRepayment.MatchString(value):
		return true
	}
	return false
}

func cleanPrefixes(s string) string {
	for _, p := range prefixCleanup {
		s = p.pattern.ReplaceAllString(s, p.repl)
	}
	s = strings.ReplaceAll(s, `\n`, " ")
	return textnorm.CollapseSpaces(s)
}

// strongTokens canonicalizes tokens, drops noise and dedupes in first-seen order.
func strongTokens(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range strings.Split(s, " ") {
		if canon, ok := tokenCanon[tok]; ok {
			tok = canon
		}
		if isNoise(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func isNoise(tok string) bool {
	if len(tok) <= 1 {
		return true
	}
	if _, ok := stopwords[tok]; ok {
		return true
	}
	return monthToken.MatchString(tok) || digitToken.MatchString(tok) || maskedToken.MatchString(tok)
}

func dropLegalSuffixes(tokens []string) []string {
	var kept []string
	for _, t := range tokens {
		if _, ok := legalSuffixes[t]; !ok {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return tokens
	}
	return kept
}

func containsAll(tokens, want []string) bool {
	for _, w := range want {
		if !slices.Contains(tokens, w) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
