package model

// LabelKind separates deduction-schedule labels from income labels.
type LabelKind string

const (
	LabelKindDeduction LabelKind = "deduction"
	LabelKindIncome    LabelKind = "income"
)

// ATOLabel is a row in ato-labels.csv: one item label of the individual tax return.
type ATOLabel struct {
	Code        string
	Name        string
	Kind        LabelKind
	Description string
}
