package rules

import (
	"fmt"
	"slices"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// ValidationError describes one problem in a rule table.
type ValidationError struct {
	Table       string
	Row         int // 0-based; -1 for table-level problems
	Description string
}

func (e ValidationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("rules [%s]: %s", e.Table, e.Description)
	}
	return fmt.Sprintf("rules [%s #%d]: %s", e.Table, e.Row+1, e.Description)
}

// LabelChecker tests whether an ATO label code exists in the label chart.
type LabelChecker interface {
	Exists(code string) bool
}

// Validate checks a Set for unusable rows. An empty result means the set is usable.
func Validate(set *Set, labels LabelChecker) []ValidationError {
	var errs []ValidationError
	add := func(table string, row int, format string, args ...any) {
		errs = append(errs, ValidationError{Table: table, Row: row, Description: fmt.Sprintf(format, args...)})
	}

	families := []struct {
		name string
		list []string
	}{
		{"keywords.transfer", set.Keywords.Transfer},
		{"keywords.salary", set.Keywords.Salary},
		{"keywords.interest", set.Keywords.Interest},
		{"keywords.investment_income", set.Keywords.InvestmentIncome},
		{"keywords.refund", set.Keywords.Refund},
		{"keywords.tax_payment", set.Keywords.TaxPayment},
		{"keywords.tax_agent", set.Keywords.TaxAgent},
	}
	for _, f := range families {
		if len(f.list) == 0 {
			add(f.name, -1, "keyword family is empty")
		}
		if slices.Contains(f.list, "") {
			add(f.name, -1, "empty keyword matches every transaction")
		}
	}

	if set.Salary.MinScore <= 0 {
		add("salary", -1, "min_score must be positive, got %d", set.Salary.MinScore)
	}
	if set.Salary.HighScore < set.Salary.MinScore {
		add("salary", -1, "high_score %d below min_score %d", set.Salary.HighScore, set.Salary.MinScore)
	}

	for i, r := range set.Deductions {
		if r.Treatment != model.TreatmentDeductionLikely && r.Treatment != model.TreatmentDeductionPossible {
			add("deductions", i, "treatment %q is not a deduction", r.Treatment)
		}
		if !r.Confidence.Valid() {
			add("deductions", i, "invalid confidence %q", r.Confidence)
		}
		if !labels.Exists(r.ATOLabel) {
			add("deductions", i, "unknown ATO label %q", r.ATOLabel)
		}
		checkKeywords(add, "deductions", i, r.Keywords)
	}

	for i, r := range set.NonDeductible {
		if r.Category == "" {
			add("non_deductible", i, "category is empty")
		}
		checkKeywords(add, "non_deductible", i, r.Keywords)
	}

	for i, r := range set.CategoryFallback {
		if !r.Treatment.Valid() {
			add("category_fallback", i, "unknown treatment %q", r.Treatment)
		}
		if !r.Confidence.Valid() {
			add("category_fallback", i, "invalid confidence %q", r.Confidence)
		}
		if r.ATOLabel != "" && !labels.Exists(r.ATOLabel) {
			add("category_fallback", i, "unknown ATO label %q", r.ATOLabel)
		}
		checkKeywords(add, "category_fallback", i, r.Match)
	}

	if !set.MerchantIntel.MinimumConfidence.Valid() {
		add("merchant_intel", -1, "invalid minimum_confidence %q", set.MerchantIntel.MinimumConfidence)
	}

	return errs
}

func checkKeywords(add func(string, int, string, ...any), table string, row int, keywords []string) {
	if len(keywords) == 0 {
		add(table, row, "no keywords")
		return
	}
	if slices.Contains(keywords, "") {
		add(table, row, "empty keyword matches every transaction")
	}
}
