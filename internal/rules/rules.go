// Package rules holds the versioned classification tables and the ordered
// first-match evaluator used to walk them.
package rules

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/textnorm"
)

// SupportedVersion is the rule-table schema version this build understands.
const SupportedVersion = 1

//go:embed default.yaml
var defaultYAML []byte

// Set is one complete, versioned set of classification tables.
type Set struct {
	Version          int                 `yaml:"version"`
	Keywords         Keywords            `yaml:"keywords"`
	Labels           LabelSets           `yaml:"labels"`
	Salary           SalaryWeights       `yaml:"salary"`
	Deductions       []DeductionRule     `yaml:"deductions"`
	NonDeductible    []NonDeductibleRule `yaml:"non_deductible"`
	CategoryFallback []FallbackRule      `yaml:"category_fallback"`
	MerchantIntel    IntelMapping        `yaml:"merchant_intel"`
}

// Keywords are the keyword families tested against normalized transaction text.
type Keywords struct {
	Transfer         []string `yaml:"transfer"`
	Salary           []string `yaml:"salary"`
	Interest         []string `yaml:"interest"`
	InvestmentIncome []string `yaml:"investment_income"`
	Refund           []string `yaml:"refund"`
	TaxPayment       []string `yaml:"tax_payment"`
	TaxAgent         []string `yaml:"tax_agent"`
	ATOCredit        []string `yaml:"ato_credit"`
}

// LabelSets are the PocketSmith labels with explicit meaning.
type LabelSets struct {
	Internal      []string `yaml:"internal"`
	Deductible    []string `yaml:"deductible"`
	NonDeductible []string `yaml:"non_deductible"`
	Salary        []string `yaml:"salary"`
}

// SalaryWeights parameterizes the salary score for uncategorized credits.
type SalaryWeights struct {
	KeywordWeight      int     `yaml:"keyword_weight"`
	LabelWeight        int     `yaml:"label_weight"`
	EmployerWeight     int     `yaml:"employer_weight"`
	RecurrenceMinCount int     `yaml:"recurrence_min_count"`
	RecurrenceWeight   int     `yaml:"recurrence_weight"`
	AmountThreshold    float64 `yaml:"amount_threshold"`
	AmountWeight       int     `yaml:"amount_weight"`
	TransferPenalty    int     `yaml:"transfer_penalty"`
	MinScore           int     `yaml:"min_score"`
	HighScore          int     `yaml:"high_score"`
}

// Threshold returns AmountThreshold as a decimal.
func (w SalaryWeights) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(w.AmountThreshold)
}

// IntelMapping lists the enrichment business categories that map to each treatment family.
type IntelMapping struct {
	MinimumConfidence   model.Confidence `yaml:"minimum_confidence"`
	IncomeCategories    []string         `yaml:"income_categories"`
	DeductionCategories []string         `yaml:"deduction_categories"`
	PrivateCategories   []string         `yaml:"private_categories"`
}

// DeductionRule maps merchant keywords to a deduction treatment.
type DeductionRule struct {
	ATOLabel   string           `yaml:"ato_label"`
	Category   string           `yaml:"category"`
	Treatment  model.Treatment  `yaml:"treatment"`
	Confidence model.Confidence `yaml:"confidence"`
	Note       string           `yaml:"note"`
	Keywords   []string         `yaml:"keywords"`
	Exclude    []string         `yaml:"exclude,omitempty"`
}

// Matches reports whether text hits a keyword and no exclusion.
func (r DeductionRule) Matches(text string) bool {
	return textnorm.ContainsAny(text, r.Keywords) && !textnorm.ContainsAny(text, r.Exclude)
}

// NonDeductibleRule maps merchant keywords to a private-spending category.
type NonDeductibleRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Matches reports whether text hits a keyword.
func (r NonDeductibleRule) Matches(text string) bool {
	return textnorm.ContainsAny(text, r.Keywords)
}

// FallbackRule classifies by PocketSmith category when merchant text is inconclusive.
type FallbackRule struct {
	Match      []string         `yaml:"match"`
	Treatment  model.Treatment  `yaml:"treatment"`
	ATOLabel   string           `yaml:"ato_label,omitempty"`
	Category   string           `yaml:"category"`
	Confidence model.Confidence `yaml:"confidence"`
	Reason     string           `yaml:"reason"`
}

// Matches reports whether category text hits a fallback term.
func (r FallbackRule) Matches(text string) bool {
	return textnorm.ContainsAny(text, r.Match)
}

// Matcher is one row of an ordered rule table.
type Matcher interface {
	Matches(text string) bool
}

// FirstMatch returns the first row of table matching text.
func FirstMatch[T Matcher](table []T, text string) (T, bool) {
	for _, row := range table {
		if row.Matches(text) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// Default returns the built-in rule tables.
func Default() *Set {
	set, err := Parse(defaultYAML)
	if err != nil {
		panic("embedded rule tables are invalid: " + err.Error())
	}
	return set
}

// DefaultYAML returns the built-in rule tables as written on disk by `taxprep init`.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}

// Parse decodes a rule-table document.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	if set.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported rules version %d (want %d)", set.Version, SupportedVersion)
	}
	return &set, nil
}

// Load reads a rule-table file from disk.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	return Parse(data)
}

// Save writes a Set to a YAML file.
func Save(path string, set *Set) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}
