package classifier

import (
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/textnorm"
)

// Category names used outside the rule tables.
const (
	CategoryInternal        = "Internal transfer"
	CategoryLikelyTransfer  = "Likely internal transfer"
	CategoryExplicitPrivate = "Explicitly marked non-deductible"
	CategoryInterest        = "Bank interest"
	CategoryInvestment      = "Investment income"
	CategorySalary          = "Salary and wages"
	CategoryCreditRefund    = "Refund/reversal (excluded)"
	CategoryDebitRefund     = "Reversal/refund (excluded)"
	CategoryATOCredit       = "ATO credit (review)"
	CategoryOtherCredit     = "Other credit (review)"
	CategoryTaggedExpense   = "Other work-related expenses (tagged)"
	CategoryTaxPayment      = "Income tax or ATO payment"
	CategoryExpenseReview   = "Expense needs review"
)

// ClassifyAll classifies every transaction in order.
func (c *Context) ClassifyAll(txs []model.Transaction) []model.Classification {
	out := make([]model.Classification, 0, len(txs))
	for _, tx := range txs {
		out = append(out, c.Classify(tx))
	}
	return out
}

// Classify runs the cascade for one transaction. Explicit labels win,
// then credits and debits walk their own ordered checks. Every path ends
// in a classification.
func (c *Context) Classify(tx model.Transaction) model.Classification {
	switch {
	case tx.Flags.ExplicitInternal:
		return result(tx, model.TreatmentInternalTransfer, CategoryInternal, "", model.ConfidenceHigh,
			"PocketSmith label marks this as internal.")
	case tx.Flags.ExplicitNonDeductible:
		return result(tx, model.TreatmentNonDeductible, CategoryExplicitPrivate, "", model.ConfidenceHigh,
			"PocketSmith label marks this transaction as non-deductible.")
	}

	if tx.IsCredit() {
		return c.classifyCredit(tx)
	}
	return c.classifyDebit(tx)
}

func (c *Context) classifyCredit(tx model.Transaction) model.Classification {
	if cl, ok := c.classifyIncome(tx); ok {
		return cl
	}

	if reversal := c.Reversals.Has(tx.UID); reversal || tx.Flags.RefundKeyword {
		conf, reason := model.ConfidenceMedium, "Merchant text suggests refund/reversal."
		if reversal {
			conf, reason = model.ConfidenceHigh, "Matched equal opposite transaction, likely reversal/refund."
		}
		return result(tx, model.TreatmentExcludedRefund, CategoryCreditRefund, "", conf, reason)
	}

	if cl, ok := c.classifyTransfer(tx); ok {
		return cl
	}

	if cl, ok := c.classifyFromIntel(tx); ok {
		return cl
	}

	if textnorm.ContainsAny(tx.TextMerchant, c.Rules.Keywords.ATOCredit) {
		return result(tx, model.TreatmentIncomeReview, CategoryATOCredit, "", model.ConfidenceMedium,
			"ATO-related credit detected. Confirm if this is a tax refund/non-assessable amount.")
	}

	return result(tx, model.TreatmentIncomeReview, CategoryOtherCredit, "", model.ConfidenceLow,
		"Credit not confidently classified from merchant text.")
}

func (c *Context) classifyIncome(tx model.Transaction) (model.Classification, bool) {
	if tx.Flags.InterestKeyword {
		return result(tx, model.TreatmentIncomeAssessable, CategoryInterest, "", model.ConfidenceHigh,
			"Merchant text indicates interest income."), true
	}
	if textnorm.ContainsAny(tx.TextMerchant, c.Rules.Keywords.InvestmentIncome) {
		return result(tx, model.TreatmentIncomeAssessable, CategoryInvestment, "", model.ConfidenceMedium,
			"Merchant text indicates distribution/dividend income."), true
	}

	w := c.Rules.Salary
	score := c.SalaryScore(tx)
	if score < w.MinScore {
		return model.Classification{}, false
	}
	conf := model.ConfidenceMedium
	if score >= w.HighScore {
		conf = model.ConfidenceHigh
	}
	return result(tx, model.TreatmentIncomeAssessable, CategorySalary, "", conf,
		"Merchant text and recurrence suggest employment income."), true
}

// SalaryScore weighs the employment-income evidence for a credit.
func (c *Context) SalaryScore(tx model.Transaction) int {
	w := c.Rules.Salary
	score := 0
	if tx.Flags.SalaryKeyword {
		score += w.KeywordWeight
	}
	if tx.HasAnyLabel(c.Rules.Labels.Salary) {
		score += w.LabelWeight
	}
	if c.matchesEmployer(tx) {
		score += w.EmployerWeight
	}
	if c.CreditStats[tx.RecurrenceKey].Count >= w.RecurrenceMinCount {
		score += w.RecurrenceWeight
	}
	if tx.AbsAmount.GreaterThanOrEqual(w.Threshold()) {
		score += w.AmountWeight
	}
	if tx.Flags.TransferKeyword {
		score -= w.TransferPenalty
	}
	return score
}

func (c *Context) classifyTransfer(tx model.Transaction) (model.Classification, bool) {
	paired := c.Transfers.Has(tx.UID)
	if !paired && !tx.Flags.TransferKeyword {
		return model.Classification{}, false
	}
	conf := model.ConfidenceMedium
	if paired {
		conf = model.ConfidenceHigh
	}
	return result(tx, model.TreatmentInternalTransfer, CategoryLikelyTransfer, "", conf,
		"Merchant text indicates transfer movement between accounts."), true
}

func (c *Context) classifyDebit(tx model.Transaction) model.Classification {
	if cl, ok := c.classifyTransfer(tx); ok {
		return cl
	}

	if reversal := c.Reversals.Has(tx.UID); reversal || tx.Flags.RefundKeyword {
		conf, reason := model.ConfidenceMedium, "Merchant text suggests a refund/reversal flow."
		if reversal {
			conf, reason = model.ConfidenceHigh, "Matched equal opposite transaction, likely reversal/refund."
		}
		return result(tx, model.TreatmentExcludedRefund, CategoryDebitRefund, "", conf, reason)
	}

	text := tx.KeywordText()

	if tx.Flags.ExplicitDeductible {
		if rule, ok := rules.FirstMatch(c.Rules.Deductions, text); ok {
			return result(tx, model.TreatmentDeductionLikely, rule.Category, rule.ATOLabel, model.ConfidenceHigh,
				"PocketSmith tax label + merchant pattern. "+rule.Note)
		}
		return result(tx, model.TreatmentDeductionLikely, CategoryTaggedExpense, "D5", model.ConfidenceHigh,
			"PocketSmith tax label applied; merchant text did not map to a more specific deduction category.")
	}

	if tx.Flags.TaxPaymentKeyword && !tx.Flags.TaxAgentKeyword {
		return result(tx, model.TreatmentNonDeductible, CategoryTaxPayment, "", model.ConfidenceHigh,
			"Merchant text indicates tax liability payment, typically not deductible.")
	}

	if cl, ok := c.classifyFromIntel(tx); ok {
		return cl
	}

	if rule, ok := rules.FirstMatch(c.Rules.Deductions, text); ok {
		return result(tx, rule.Treatment, rule.Category, rule.ATOLabel, rule.Confidence,
			"Matched from merchant text. "+rule.Note)
	}

	if rule, ok := rules.FirstMatch(c.Rules.NonDeductible, tx.TextMerchant); ok {
		return result(tx, model.TreatmentNonDeductible, rule.Category, "", model.ConfidenceMedium,
			"Merchant text strongly suggests private/personal spending.")
	}

	if tx.TextCategory != "" {
		if rule, ok := rules.FirstMatch(c.Rules.CategoryFallback, tx.TextCategory); ok {
			return result(tx, rule.Treatment, rule.Category, rule.ATOLabel, rule.Confidence, rule.Reason)
		}
	}

	return result(tx, model.TreatmentReview, CategoryExpenseReview, "", model.ConfidenceLow,
		"Not confidently classifiable from merchant text; accountant review required.")
}

func result(tx model.Transaction, t model.Treatment, category, label string, conf model.Confidence, reason string) model.Classification {
	return model.Classification{
		Tx:          tx,
		Treatment:   t,
		TaxCategory: category,
		ATOLabel:    label,
		Confidence:  conf,
		Reason:      reason,
	}
}
