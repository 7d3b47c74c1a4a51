package model

// Treatment is the classifier's tax treatment for a transaction.
type Treatment string

const (
	TreatmentIncomeAssessable  Treatment = "income_assessable"
	TreatmentIncomeReview      Treatment = "income_review"
	TreatmentDeductionLikely   Treatment = "deduction_likely"
	TreatmentDeductionPossible Treatment = "deduction_possible"
	TreatmentInternalTransfer  Treatment = "internal_transfer"
	TreatmentExcludedRefund    Treatment = "excluded_refund"
	TreatmentNonDeductible     Treatment = "non_deductible"
	TreatmentReview            Treatment = "review"
)

// Treatments lists every treatment in display order.
var Treatments = []Treatment{
	TreatmentIncomeAssessable,
	TreatmentIncomeReview,
	TreatmentDeductionLikely,
	TreatmentDeductionPossible,
	TreatmentInternalTransfer,
	TreatmentExcludedRefund,
	TreatmentNonDeductible,
	TreatmentReview,
}

// Valid reports whether t is one of the known treatments.
func (t Treatment) Valid() bool {
	for _, known := range Treatments {
		if t == known {
			return true
		}
	}
	return false
}

// Display returns the human label used in reports and CSV exports.
func (t Treatment) Display() string {
	switch t {
	case TreatmentIncomeAssessable:
		return "Assessable income"
	case TreatmentIncomeReview:
		return "Income review"
	case TreatmentDeductionLikely:
		return "Likely deduction"
	case TreatmentDeductionPossible:
		return "Possible deduction"
	case TreatmentNonDeductible:
		return "Non-deductible"
	case TreatmentInternalTransfer:
		return "Internal transfer"
	case TreatmentExcludedRefund:
		return "Refund/reversal excluded"
	default:
		return "Review"
	}
}

// Confidence is a three-tier confidence level.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether c is low, medium or high.
func (c Confidence) Valid() bool {
	return c == ConfidenceLow || c == ConfidenceMedium || c == ConfidenceHigh
}

// Rank orders confidence levels: low=0, medium=1, high=2.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// ParseConfidence maps free text to a Confidence. Anything unrecognized is low.
func ParseConfidence(s string) Confidence {
	c := Confidence(s)
	if c.Valid() {
		return c
	}
	return ConfidenceLow
}

// BumpConfidence raises level to minimum if it is lower. It never lowers level.
func BumpConfidence(level, minimum Confidence) Confidence {
	if level.Rank() >= minimum.Rank() {
		return ParseConfidence(string(level))
	}
	return minimum
}

// Classification is the classifier's verdict for one transaction.
type Classification struct {
	Tx          Transaction
	Treatment   Treatment
	TaxCategory string
	ATOLabel    string
	Confidence  Confidence
	Reason      string
}
