package atolabels

import "github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"

// DefaultChart returns the individual return item labels the classifier can emit.
func DefaultChart() []model.ATOLabel {
	return []model.ATOLabel{
		{Code: "1", Name: "Salary or wages", Kind: model.LabelKindIncome},
		{Code: "10", Name: "Gross interest", Kind: model.LabelKindIncome},
		{Code: "11", Name: "Dividends", Kind: model.LabelKindIncome},
		{Code: "13", Name: "Partnerships and trusts", Kind: model.LabelKindIncome},
		{Code: "D1", Name: "Work-related car expenses", Kind: model.LabelKindDeduction},
		{Code: "D2", Name: "Work-related travel expenses", Kind: model.LabelKindDeduction, Description: "Commuting is private"},
		{Code: "D3", Name: "Work-related clothing, laundry and dry-cleaning expenses", Kind: model.LabelKindDeduction},
		{Code: "D4", Name: "Work-related self-education expenses", Kind: model.LabelKindDeduction},
		{Code: "D5", Name: "Other work-related expenses", Kind: model.LabelKindDeduction},
		{Code: "D6", Name: "Low value pool deduction", Kind: model.LabelKindDeduction},
		{Code: "D7", Name: "Interest deductions", Kind: model.LabelKindDeduction},
		{Code: "D8", Name: "Dividend deductions", Kind: model.LabelKindDeduction},
		{Code: "D9", Name: "Gifts or donations", Kind: model.LabelKindDeduction, Description: "Recipient must be a DGR"},
		{Code: "D10", Name: "Cost of managing tax affairs", Kind: model.LabelKindDeduction},
	}
}
