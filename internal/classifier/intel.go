package classifier

import (
	"slices"
	"strings"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// Categories produced from merchant intelligence.
const (
	CategoryBankingEvent   = "Internal transfer / banking event"
	CategoryTaxAffairs     = "Cost of managing tax affairs"
	CategoryIntelDeduction = "Potential work-related expense (merchant intelligence)"
	CategoryIntelPrivate   = "Likely private expense (merchant intelligence)"
)

const (
	businessBankingFinancial = "banking_financial"
	businessTaxAccounting    = "tax_accounting"
)

// classifyFromIntel maps a resolved merchant business category to a
// treatment. Every mapping is raised to at least the configured minimum
// confidence.
func (c *Context) classifyFromIntel(tx model.Transaction) (model.Classification, bool) {
	intel, ok := c.lookupIntel(tx)
	if !ok || !intel.Resolved() {
		return model.Classification{}, false
	}

	category := intel.Category()
	mapping := c.Rules.MerchantIntel
	conf := model.BumpConfidence(intel.Confidence(), mapping.MinimumConfidence)
	prefix := intelReasonPrefix(intel)

	if tx.IsCredit() {
		switch {
		case category == model.CategoryBankingEvent:
			return result(tx, model.TreatmentInternalTransfer, CategoryBankingEvent, "", conf,
				prefix+"Credit treated as non-assessable banking movement."), true
		case slices.Contains(mapping.IncomeCategories, category):
			return result(tx, model.TreatmentIncomeAssessable, CategorySalary, "", conf,
				prefix+"Credit treated as likely employment income."), true
		case category == businessBankingFinancial && tx.Flags.InterestKeyword:
			return result(tx, model.TreatmentIncomeAssessable, CategoryInterest, "", conf,
				prefix+"Credit treated as likely interest/financial income."), true
		}
		return model.Classification{}, false
	}

	switch {
	case category == model.CategoryBankingEvent:
		return result(tx, model.TreatmentInternalTransfer, CategoryBankingEvent, "", conf,
			prefix+"Debit treated as non-deductible banking movement."), true
	case category == businessTaxAccounting:
		return result(tx, model.TreatmentDeductionLikely, CategoryTaxAffairs, "D10", conf,
			prefix+"Merchant category suggests tax/accounting service expense."), true
	case slices.Contains(mapping.DeductionCategories, category):
		return result(tx, model.TreatmentDeductionPossible, CategoryIntelDeduction, "D5", conf,
			prefix+"Merchant category suggests potential work-related expense requiring apportionment review."), true
	case slices.Contains(mapping.PrivateCategories, category):
		return result(tx, model.TreatmentNonDeductible, CategoryIntelPrivate, "", conf,
			prefix+"Merchant category suggests private/personal spending."), true
	}
	return model.Classification{}, false
}

func intelReasonPrefix(intel model.MerchantIntel) string {
	var parts []string
	if intel.BusinessType != "" {
		parts = append(parts, "business type: "+intel.BusinessType)
	}
	if intel.ABN != "" {
		parts = append(parts, "ABN: "+intel.ABN)
	}
	if intel.MainPlaceOfBusiness != "" {
		parts = append(parts, "main place: "+intel.MainPlaceOfBusiness)
	}
	if len(parts) == 0 {
		return "Merchant intelligence applied. "
	}
	return "Merchant intelligence (" + strings.Join(parts, "; ") + "). "
}
