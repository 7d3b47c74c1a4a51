package rules

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/atolabels"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

func TestDefault_Valid(t *testing.T) {
	set := Default()
	assert.Equal(t, SupportedVersion, set.Version)
	assert.Len(t, set.Deductions, 7)
	assert.Len(t, set.NonDeductible, 6)
	assert.Len(t, set.CategoryFallback, 3)

	errs := Validate(set, atolabels.NewService(atolabels.DefaultChart()))
	assert.Empty(t, errs)
}

func TestDefault_FreshCopy(t *testing.T) {
	a := Default()
	a.Deductions[0].Category = "changed"
	assert.NotEqual(t, "changed", Default().Deductions[0].Category)
}

func TestFirstMatch_OrderWins(t *testing.T) {
	set := Default()

	rule, ok := FirstMatch(set.Deductions, "h&r block tax return")
	require.True(t, ok)
	assert.Equal(t, "D10", rule.ATOLabel)

	rule, ok = FirstMatch(set.Deductions, "officeworks 0123 sydney")
	require.True(t, ok)
	assert.Equal(t, "Work-related tools, software and office supplies", rule.Category)
	assert.Equal(t, model.TreatmentDeductionPossible, rule.Treatment)
	assert.Equal(t, model.ConfidenceMedium, rule.Confidence)

	_, ok = FirstMatch(set.Deductions, "woolworths metro")
	assert.False(t, ok)
}

func TestDeductionRule_Exclude(t *testing.T) {
	set := Default()

	rule, ok := FirstMatch(set.Deductions, "uber trip sydney")
	require.True(t, ok)
	assert.Equal(t, "D2", rule.ATOLabel)

	_, ok = FirstMatch(set.Deductions, "uber eats sydney")
	assert.False(t, ok)

	nd, ok := FirstMatch(set.NonDeductible, "uber eats sydney")
	require.True(t, ok)
	assert.Equal(t, "Private meals and entertainment", nd.Category)
}

func TestFallbackRule(t *testing.T) {
	set := Default()

	rule, ok := FirstMatch(set.CategoryFallback, "eating out")
	require.True(t, ok)
	assert.Equal(t, model.TreatmentNonDeductible, rule.Treatment)
	assert.Equal(t, model.ConfidenceLow, rule.Confidence)

	rule, ok = FirstMatch(set.CategoryFallback, "computing")
	require.True(t, ok)
	assert.Equal(t, "D5", rule.ATOLabel)
}

func TestParse_RejectsVersion(t *testing.T) {
	_, err := Parse([]byte("version: 2\n"))
	assert.ErrorContains(t, err, "unsupported rules version 2")

	_, err = Parse([]byte("version: [\n"))
	assert.ErrorContains(t, err, "parsing rules")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, Save(path, Default()))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
}

func TestValidate_Errors(t *testing.T) {
	set := Default()
	set.Deductions[0].Treatment = model.TreatmentNonDeductible
	set.Deductions[1].ATOLabel = "D42"
	set.NonDeductible[0].Keywords = append(set.NonDeductible[0].Keywords, "")
	set.CategoryFallback[0].Confidence = "certain"
	set.Keywords.Refund = nil
	set.Salary.HighScore = 1

	errs := Validate(set, atolabels.NewService(atolabels.DefaultChart()))
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	assert.Contains(t, msgs, `rules [deductions #1]: treatment "non_deductible" is not a deduction`)
	assert.Contains(t, msgs, `rules [deductions #2]: unknown ATO label "D42"`)
	assert.Contains(t, msgs, "rules [non_deductible #1]: empty keyword matches every transaction")
	assert.Contains(t, msgs, `rules [category_fallback #1]: invalid confidence "certain"`)
	assert.Contains(t, msgs, "rules [keywords.refund]: keyword family is empty")
	assert.Contains(t, msgs, "rules [salary]: high_score 1 below min_score 4")
}

func TestSalaryThreshold(t *testing.T) {
	assert.Equal(t, "500", Default().Salary.Threshold().String())
}
