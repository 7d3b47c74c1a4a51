package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/importer"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/pairing"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
)

const samplePath = "../../testdata/pocketsmith_sample.csv"

func strictOptions(employers string) Options {
	return Options{
		StrictTransfers: true,
		Employers:       ParseEmployers(employers),
		Pairing:         pairing.DefaultParams(),
	}
}

func loadSample(t *testing.T) []model.Transaction {
	t.Helper()
	records, err := importer.DefaultRegistry().ReadFile(samplePath, "pocketsmith")
	require.NoError(t, err)
	res, err := importer.Normalize(records, rules.Default())
	require.NoError(t, err)
	return res.Transactions
}

// row builds one normalized transaction from a handful of CSV fields.
func row(t *testing.T, line int, fields map[string]string) model.Transaction {
	t.Helper()
	if fields[importer.ColDate] == "" {
		fields[importer.ColDate] = "2025-01-15"
	}
	res, err := importer.Normalize([]importer.Record{{Line: line, Fields: fields}}, rules.Default())
	require.NoError(t, err)
	return res.Transactions[0]
}

func byUID(cls []model.Classification) map[string]model.Classification {
	out := make(map[string]model.Classification, len(cls))
	for _, c := range cls {
		out[c.Tx.UID] = c
	}
	return out
}

func TestClassifyAll_Sample(t *testing.T) {
	txs := loadSample(t)
	ctx := NewContext(txs, rules.Default(), strictOptions(""), nil)
	got := byUID(ctx.ClassifyAll(txs))
	require.Len(t, got, len(txs))

	tests := []struct {
		uid        string
		treatment  model.Treatment
		category   string
		label      string
		confidence model.Confidence
	}{
		{"tx-001", model.TreatmentInternalTransfer, CategoryLikelyTransfer, "", model.ConfidenceHigh},
		{"tx-002", model.TreatmentInternalTransfer, CategoryLikelyTransfer, "", model.ConfidenceHigh},
		{"tx-003", model.TreatmentNonDeductible, "Private meals and entertainment", "", model.ConfidenceMedium},
		{"tx-004", model.TreatmentIncomeAssessable, CategorySalary, "", model.ConfidenceMedium},
		{"tx-007", model.TreatmentIncomeAssessable, CategorySalary, "", model.ConfidenceMedium},
		{"tx-008", model.TreatmentDeductionPossible, "Work-related tools, software and office supplies", "D5", model.ConfidenceMedium},
		{"tx-009", model.TreatmentExcludedRefund, CategoryDebitRefund, "", model.ConfidenceHigh},
		{"tx-010", model.TreatmentExcludedRefund, CategoryCreditRefund, "", model.ConfidenceHigh},
		{"tx-011", model.TreatmentDeductionLikely, "Cost of managing tax affairs", "D10", model.ConfidenceHigh},
		{"row-13", model.TreatmentNonDeductible, CategoryExplicitPrivate, "", model.ConfidenceHigh},
		{"tx-015", model.TreatmentReview, CategoryExpenseReview, "", model.ConfidenceLow},
		{"tx-016", model.TreatmentIncomeAssessable, CategoryInterest, "", model.ConfidenceHigh},
	}
	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			c, ok := got[tt.uid]
			require.True(t, ok)
			assert.Equal(t, tt.treatment, c.Treatment)
			assert.Equal(t, tt.category, c.TaxCategory)
			assert.Equal(t, tt.label, c.ATOLabel)
			assert.Equal(t, tt.confidence, c.Confidence)
			assert.NotEmpty(t, c.Reason)
		})
	}

	assert.Equal(t, "Matched equal opposite transaction, likely reversal/refund.", got["tx-010"].Reason)
	assert.Equal(t, "PocketSmith tax label + merchant pattern. Tax agent or tax affairs management cost.", got["tx-011"].Reason)
}

func TestClassifyAll_Total(t *testing.T) {
	txs := loadSample(t)
	for _, strict := range []bool{true, false} {
		opts := strictOptions("nsw health")
		opts.StrictTransfers = strict
		cls := NewContext(txs, rules.Default(), opts, nil).ClassifyAll(txs)
		require.Len(t, cls, len(txs))
		for i, c := range cls {
			assert.Equal(t, txs[i].UID, c.Tx.UID)
			assert.True(t, c.Treatment.Valid(), c.Tx.UID)
			assert.True(t, c.Confidence.Valid(), c.Tx.UID)
			assert.NotEmpty(t, c.TaxCategory, c.Tx.UID)
			assert.NotEmpty(t, c.Reason, c.Tx.UID)
		}
	}
}

func TestClassify_LooseTransfersFallBackToKeyword(t *testing.T) {
	txs := loadSample(t)
	opts := strictOptions("")
	opts.StrictTransfers = false
	got := byUID(NewContext(txs, rules.Default(), opts, nil).ClassifyAll(txs))

	assert.Equal(t, model.TreatmentInternalTransfer, got["tx-001"].Treatment)
	assert.Equal(t, model.ConfidenceMedium, got["tx-001"].Confidence)
}

func TestClassify_EmployerRaisesSalaryConfidence(t *testing.T) {
	txs := loadSample(t)
	ctx := NewContext(txs, rules.Default(), strictOptions("Acme, NSW Health"), nil)
	got := byUID(ctx.ClassifyAll(txs))

	assert.Equal(t, model.ConfidenceHigh, got["tx-005"].Confidence)
	assert.Equal(t, "Merchant text and recurrence suggest employment income.", got["tx-005"].Reason)
}

func TestSalaryScore(t *testing.T) {
	set := rules.Default()
	payroll := row(t, 2, map[string]string{importer.ColMerchant: "NSW HEALTH PAYROLL", importer.ColAmount: "3200"})
	labelled := row(t, 3, map[string]string{importer.ColMerchant: "Dr Jones", importer.ColAmount: "450", importer.ColLabels: "nswhealth"})
	sweep := row(t, 4, map[string]string{importer.ColMerchant: "Osko salary sweep", importer.ColAmount: "900"})

	ctx := &Context{Rules: set, CreditStats: map[string]CreditStat{payroll.RecurrenceKey: {Count: 3}}}
	assert.Equal(t, 5, ctx.SalaryScore(payroll))
	assert.Equal(t, 3, ctx.SalaryScore(labelled))
	assert.Equal(t, 2, ctx.SalaryScore(sweep))

	ctx.Employers = ParseEmployers("dr jones")
	assert.Equal(t, 6, ctx.SalaryScore(labelled))
}

func TestClassify_Cascade(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		treatment  model.Treatment
		category   string
		confidence model.Confidence
		reason     string
	}{
		{
			name:       "internal label beats everything",
			fields:     map[string]string{importer.ColMerchant: "NSW HEALTH PAYROLL", importer.ColAmount: "3200", importer.ColLabels: "internal"},
			treatment:  model.TreatmentInternalTransfer,
			category:   CategoryInternal,
			confidence: model.ConfidenceHigh,
			reason:     "PocketSmith label marks this as internal.",
		},
		{
			name:       "non-deductible label beats tax label",
			fields:     map[string]string{importer.ColMerchant: "Officeworks", importer.ColAmount: "-20", importer.ColLabels: "tax, private"},
			treatment:  model.TreatmentNonDeductible,
			category:   CategoryExplicitPrivate,
			confidence: model.ConfidenceHigh,
		},
		{
			name:       "investment distribution",
			fields:     map[string]string{importer.ColMerchant: "Vanguard Distribution", importer.ColAmount: "140.22"},
			treatment:  model.TreatmentIncomeAssessable,
			category:   CategoryInvestment,
			confidence: model.ConfidenceMedium,
		},
		{
			name:       "credit refund keyword",
			fields:     map[string]string{importer.ColMerchant: "Myer refund", importer.ColAmount: "80"},
			treatment:  model.TreatmentExcludedRefund,
			category:   CategoryCreditRefund,
			confidence: model.ConfidenceMedium,
			reason:     "Merchant text suggests refund/reversal.",
		},
		{
			name:       "credit transfer keyword",
			fields:     map[string]string{importer.ColMerchant: "Osko from J Smith", importer.ColAmount: "50"},
			treatment:  model.TreatmentInternalTransfer,
			category:   CategoryLikelyTransfer,
			confidence: model.ConfidenceMedium,
		},
		{
			name:       "ato credit",
			fields:     map[string]string{importer.ColMerchant: "ATO", importer.ColAmount: "1100"},
			treatment:  model.TreatmentIncomeReview,
			category:   CategoryATOCredit,
			confidence: model.ConfidenceMedium,
		},
		{
			name:       "other credit",
			fields:     map[string]string{importer.ColMerchant: "Marketplace sale", importer.ColAmount: "35"},
			treatment:  model.TreatmentIncomeReview,
			category:   CategoryOtherCredit,
			confidence: model.ConfidenceLow,
			reason:     "Credit not confidently classified from merchant text.",
		},
		{
			name:       "debit refund keyword",
			fields:     map[string]string{importer.ColMerchant: "Chargeback fee", importer.ColAmount: "-15"},
			treatment:  model.TreatmentExcludedRefund,
			category:   CategoryDebitRefund,
			confidence: model.ConfidenceMedium,
			reason:     "Merchant text suggests a refund/reversal flow.",
		},
		{
			name:       "tagged expense without a rule",
			fields:     map[string]string{importer.ColMerchant: "Scrubs Direct", importer.ColAmount: "-99", importer.ColLabels: "deductible"},
			treatment:  model.TreatmentDeductionLikely,
			category:   CategoryTaggedExpense,
			confidence: model.ConfidenceHigh,
		},
		{
			name:       "tax payment",
			fields:     map[string]string{importer.ColMerchant: "BPAY TAX OFFICE PAYMENTS", importer.ColAmount: "-2000"},
			treatment:  model.TreatmentNonDeductible,
			category:   CategoryTaxPayment,
			confidence: model.ConfidenceHigh,
		},
		{
			name:       "tax agent is not a tax payment",
			fields:     map[string]string{importer.ColMerchant: "Etax tax return", importer.ColAmount: "-89"},
			treatment:  model.TreatmentDeductionLikely,
			category:   "Cost of managing tax affairs",
			confidence: model.ConfidenceHigh,
			reason:     "Matched from merchant text. Tax agent or tax affairs management cost.",
		},
		{
			name:       "deduction rule reads memo",
			fields:     map[string]string{importer.ColMerchant: "Payment 4821", importer.ColAmount: "-300", importer.ColMemo: "AHPRA annual"},
			treatment:  model.TreatmentDeductionLikely,
			category:   "Professional fees, registrations and indemnity",
			confidence: model.ConfidenceHigh,
		},
		{
			name:       "uber trip is travel",
			fields:     map[string]string{importer.ColMerchant: "Uber *Trip", importer.ColAmount: "-23"},
			treatment:  model.TreatmentDeductionPossible,
			category:   "Work-related travel",
			confidence: model.ConfidenceLow,
		},
		{
			name:       "category fallback",
			fields:     map[string]string{importer.ColMerchant: "Quiet Corner Co", importer.ColAmount: "-60", importer.ColCategory: "Eating Out"},
			treatment:  model.TreatmentNonDeductible,
			category:   "Likely private expense (category fallback)",
			confidence: model.ConfidenceLow,
		},
		{
			name:       "terminal review",
			fields:     map[string]string{importer.ColMerchant: "Quiet Corner Co", importer.ColAmount: "-60"},
			treatment:  model.TreatmentReview,
			category:   CategoryExpenseReview,
			confidence: model.ConfidenceLow,
			reason:     "Not confidently classifiable from merchant text; accountant review required.",
		},
		{
			name:       "zero amount takes the debit path",
			fields:     map[string]string{importer.ColMerchant: "Quiet Corner Co", importer.ColAmount: "0"},
			treatment:  model.TreatmentReview,
			category:   CategoryExpenseReview,
			confidence: model.ConfidenceLow,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := row(t, i+2, tt.fields)
			ctx := NewContext([]model.Transaction{tx}, rules.Default(), strictOptions(""), nil)
			got := ctx.Classify(tx)
			assert.Equal(t, tt.treatment, got.Treatment)
			assert.Equal(t, tt.category, got.TaxCategory)
			assert.Equal(t, tt.confidence, got.Confidence)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, got.Reason)
			}
		})
	}
}

func TestClassify_MerchantIntel(t *testing.T) {
	intel := IntelMap{
		"officeworks": {BusinessCategory: "grocery_retail", ClassificationConfidence: "high", BusinessType: "Retail"},
		"acme":        {BusinessCategory: "office_supplies", ClassificationConfidence: "low", ABN: "51824753556"},
		"bigbank":     {BusinessCategory: "banking_event", ClassificationConfidence: "bogus"},
		"medstaff":    {BusinessCategory: "Staffing_Agency", ClassificationConfidence: "high"},
		"nobody":      {BusinessCategory: "unknown", ClassificationConfidence: "high"},
		"ledger":      {BusinessCategory: "tax_accounting", ClassificationConfidence: "medium", MainPlaceOfBusiness: "NSW 2000"},
		"ing":         {BusinessCategory: "banking_financial", ClassificationConfidence: "medium"},
	}

	tests := []struct {
		name       string
		merchant   string
		amount     string
		treatment  model.Treatment
		category   string
		confidence model.Confidence
		reason     string
	}{
		{
			name: "private intel beats deduction rule", merchant: "OFFICEWORKS", amount: "-40",
			treatment: model.TreatmentNonDeductible, category: CategoryIntelPrivate, confidence: model.ConfidenceHigh,
			reason: "Merchant intelligence (business type: Retail). Merchant category suggests private/personal spending.",
		},
		{
			name: "deduction intel is bumped", merchant: "ACME", amount: "-75",
			treatment: model.TreatmentDeductionPossible, category: CategoryIntelDeduction, confidence: model.ConfidenceMedium,
			reason: "Merchant intelligence (ABN: 51824753556). Merchant category suggests potential work-related expense requiring apportionment review.",
		},
		{
			name: "banking event debit", merchant: "BIGBANK", amount: "-10",
			treatment: model.TreatmentInternalTransfer, category: CategoryBankingEvent, confidence: model.ConfidenceMedium,
			reason: "Merchant intelligence applied. Debit treated as non-deductible banking movement.",
		},
		{
			name: "banking event credit", merchant: "BIGBANK", amount: "10",
			treatment: model.TreatmentInternalTransfer, category: CategoryBankingEvent, confidence: model.ConfidenceMedium,
		},
		{
			name: "income intel credit", merchant: "MEDSTAFF", amount: "250",
			treatment: model.TreatmentIncomeAssessable, category: CategorySalary, confidence: model.ConfidenceHigh,
		},
		{
			name: "tax accounting intel", merchant: "LEDGER", amount: "-200",
			treatment: model.TreatmentDeductionLikely, category: CategoryTaxAffairs, confidence: model.ConfidenceMedium,
			reason: "Merchant intelligence (main place: NSW 2000). Merchant category suggests tax/accounting service expense.",
		},
		{
			name: "unknown category is ignored", merchant: "NOBODY", amount: "-30",
			treatment: model.TreatmentReview, category: CategoryExpenseReview, confidence: model.ConfidenceLow,
		},
		{
			name: "banking financial without interest keyword is ignored", merchant: "ING", amount: "20",
			treatment: model.TreatmentIncomeReview, category: CategoryOtherCredit, confidence: model.ConfidenceLow,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := row(t, i+2, map[string]string{importer.ColMerchant: tt.merchant, importer.ColAmount: tt.amount})
			ctx := NewContext([]model.Transaction{tx}, rules.Default(), strictOptions(""), intel)
			got := ctx.Classify(tx)
			assert.Equal(t, tt.treatment, got.Treatment)
			assert.Equal(t, tt.category, got.TaxCategory)
			assert.Equal(t, tt.confidence, got.Confidence)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, got.Reason)
			}
		})
	}
}

func TestClassify_IntelDoesNotOverrideInterest(t *testing.T) {
	tx := row(t, 2, map[string]string{importer.ColMerchant: "ING Bonus Interest", importer.ColAmount: "4.10"})
	intel := IntelMap{tx.MerchantLookupKey: {BusinessCategory: "banking_event", ClassificationConfidence: "high"}}
	got := NewContext([]model.Transaction{tx}, rules.Default(), strictOptions(""), intel).Classify(tx)
	assert.Equal(t, model.TreatmentIncomeAssessable, got.Treatment)
	assert.Equal(t, CategoryInterest, got.TaxCategory)
}

func TestParseEmployers(t *testing.T) {
	assert.Equal(t, []string{"nsw health", "acme pty ltd"}, ParseEmployers(" NSW Health , , ACME Pty-Ltd"))
	assert.Nil(t, ParseEmployers(""))
}

func TestBuildCreditStats(t *testing.T) {
	stats := BuildCreditStats(loadSample(t))
	payroll := stats["nsw health payroll"]
	assert.Equal(t, 4, payroll.Count)
	assert.Equal(t, "12800", payroll.Total.String())
	_, hasDebit := stats["uber eats sydney"]
	assert.False(t, hasDebit)
}
