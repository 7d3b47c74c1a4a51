// Package aggregate rolls classifications up into income and deduction
// schedules, treatment totals and a review queue.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/classifier"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// DefaultReviewLimit caps the review queue.
const DefaultReviewLimit = 80

// Options controls what counts toward the included deduction total.
type Options struct {
	IncludePossible bool
	ReviewLimit     int // <= 0 means DefaultReviewLimit
}

// Row is one line of the income or deduction schedule.
type Row struct {
	Key       string
	ATOLabel  string
	Category  string
	Treatment model.Treatment
	Count     int
	Amount    decimal.Decimal
	High      int
	Medium    int
	Low       int
}

// DominantConfidence is the most common tier in the row. Ties go to the
// higher tier.
func (r Row) DominantConfidence() model.Confidence {
	switch {
	case r.High >= r.Medium && r.High >= r.Low:
		return model.ConfidenceHigh
	case r.Medium >= r.Low:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func (r *Row) add(amount decimal.Decimal, c model.Confidence) {
	r.Count++
	r.Amount = r.Amount.Add(amount)
	switch c {
	case model.ConfidenceHigh:
		r.High++
	case model.ConfidenceMedium:
		r.Medium++
	default:
		r.Low++
	}
}

// Summary is the aggregate view of one financial year.
type Summary struct {
	TransactionCount  int
	MerchantCount     int
	EnrichedMerchants int
	ResolvedMerchants int

	AssessableIncome   decimal.Decimal
	LikelyDeductions   decimal.Decimal
	PossibleDeductions decimal.Decimal
	IncludedDeductions decimal.Decimal
	NonDeductible      decimal.Decimal
	InternalTransfers  decimal.Decimal
	ExcludedRefunds    decimal.Decimal
	ReviewCount        int
	ReviewAmount       decimal.Decimal

	IncomeRows    []Row
	DeductionRows []Row
	ReviewRows    []model.Classification
}

// Summarize aggregates records. Income sums signed amounts; every other
// total sums absolute amounts. Possible deductions are queued for review
// but do not count toward ReviewCount. merchantCount <= 0 falls back to the
// number of distinct lookup keys. intel may be nil.
func Summarize(records []model.Classification, opts Options, intel classifier.IntelLookup, merchantCount int) Summary {
	s := Summary{TransactionCount: len(records)}
	income := newRowSet()
	deductions := newRowSet()

	for _, rec := range records {
		amount := rec.Tx.AbsAmount
		switch rec.Treatment {
		case model.TreatmentIncomeAssessable:
			s.AssessableIncome = s.AssessableIncome.Add(rec.Tx.Amount)
			income.add(rec.TaxCategory, rec, rec.Tx.Amount)
		case model.TreatmentDeductionLikely:
			s.LikelyDeductions = s.LikelyDeductions.Add(amount)
			s.IncludedDeductions = s.IncludedDeductions.Add(amount)
			deductions.add(deductionKey(rec), rec, amount)
		case model.TreatmentDeductionPossible:
			s.PossibleDeductions = s.PossibleDeductions.Add(amount)
			if opts.IncludePossible {
				s.IncludedDeductions = s.IncludedDeductions.Add(amount)
			}
			deductions.add(deductionKey(rec), rec, amount)
			s.ReviewRows = append(s.ReviewRows, rec)
		case model.TreatmentInternalTransfer:
			s.InternalTransfers = s.InternalTransfers.Add(amount)
		case model.TreatmentExcludedRefund:
			s.ExcludedRefunds = s.ExcludedRefunds.Add(amount)
		case model.TreatmentNonDeductible:
			s.NonDeductible = s.NonDeductible.Add(amount)
		case model.TreatmentIncomeReview, model.TreatmentReview:
			s.ReviewRows = append(s.ReviewRows, rec)
			s.ReviewCount++
			s.ReviewAmount = s.ReviewAmount.Add(amount)
		}
	}

	s.IncomeRows = income.rows
	sort.SliceStable(s.IncomeRows, func(i, j int) bool {
		return s.IncomeRows[i].Amount.GreaterThan(s.IncomeRows[j].Amount)
	})

	s.DeductionRows = deductions.rows
	sort.SliceStable(s.DeductionRows, func(i, j int) bool {
		a, b := s.DeductionRows[i], s.DeductionRows[j]
		if a.Treatment != b.Treatment {
			return a.Treatment == model.TreatmentDeductionLikely
		}
		return a.Amount.GreaterThan(b.Amount)
	})

	sort.SliceStable(s.ReviewRows, func(i, j int) bool {
		return s.ReviewRows[i].Tx.AbsAmount.GreaterThan(s.ReviewRows[j].Tx.AbsAmount)
	})
	limit := opts.ReviewLimit
	if limit <= 0 {
		limit = DefaultReviewLimit
	}
	if len(s.ReviewRows) > limit {
		s.ReviewRows = s.ReviewRows[:limit]
	}

	keys := merchantKeys(records)
	s.MerchantCount = merchantCount
	if s.MerchantCount <= 0 {
		s.MerchantCount = len(keys)
	}
	if intel != nil {
		for _, key := range keys {
			mi, ok := intel.Lookup(key)
			if !ok {
				continue
			}
			s.EnrichedMerchants++
			if mi.Resolved() {
				s.ResolvedMerchants++
			}
		}
	}
	return s
}

func deductionKey(rec model.Classification) string {
	return rec.ATOLabel + "|" + rec.TaxCategory + "|" + string(rec.Treatment)
}

// merchantKeys returns the distinct non-empty lookup keys in first-seen order.
func merchantKeys(records []model.Classification) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, rec := range records {
		k := rec.Tx.MerchantLookupKey
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// rowSet accumulates rows by key, remembering first-seen order.
type rowSet struct {
	index map[string]int
	rows  []Row
}

func newRowSet() *rowSet {
	return &rowSet{index: make(map[string]int)}
}

func (rs *rowSet) add(key string, rec model.Classification, amount decimal.Decimal) {
	i, ok := rs.index[key]
	if !ok {
		i = len(rs.rows)
		rs.index[key] = i
		rs.rows = append(rs.rows, Row{
			Key:       key,
			ATOLabel:  rec.ATOLabel,
			Category:  rec.TaxCategory,
			Treatment: rec.Treatment,
		})
	}
	rs.rows[i].add(amount, rec.Confidence)
}
