// Package pairing matches equal-and-opposite transactions as internal
// transfers or as reversals.
package pairing

import (
	"sort"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/textnorm"
)

const (
	DefaultTransferWindowDays = 3
	DefaultTransferMinScore   = 4
	DefaultReversalWindowDays = 45
	DefaultReversalMinScore   = 0.62
	DefaultRefundBonus        = 0.2
)

// TransferWeights score a candidate transfer pair.
type TransferWeights struct {
	Keyword        int `yaml:"keyword"`
	InternalLabel  int `yaml:"internal_label"`
	AccountsDiffer int `yaml:"accounts_differ"`
	WithinOneDay   int `yaml:"within_one_day"`
	SameRecurrence int `yaml:"same_recurrence"`
}

// Params tunes both passes.
type Params struct {
	TransferWindowDays int             `yaml:"transfer_window_days"`
	TransferMinScore   int             `yaml:"transfer_min_score"`
	TransferWeights    TransferWeights `yaml:"transfer_weights"`
	ReversalWindowDays int             `yaml:"reversal_window_days"`
	ReversalMinScore   float64         `yaml:"reversal_min_score"`
	RefundBonus        float64         `yaml:"refund_bonus"`
}

// DefaultParams returns the standard windows, weights and thresholds.
func DefaultParams() Params {
	return Params{
		TransferWindowDays: DefaultTransferWindowDays,
		TransferMinScore:   DefaultTransferMinScore,
		TransferWeights: TransferWeights{
			Keyword:        3,
			InternalLabel:  3,
			AccountsDiffer: 2,
			WithinOneDay:   1,
			SameRecurrence: 1,
		},
		ReversalWindowDays: DefaultReversalWindowDays,
		ReversalMinScore:   DefaultReversalMinScore,
		RefundBonus:        DefaultRefundBonus,
	}
}

// Map is a symmetric uid -> partner uid matching.
type Map map[string]string

// Has reports whether uid is paired.
func (m Map) Has(uid string) bool {
	_, ok := m[uid]
	return ok
}

// Partner returns uid's partner.
func (m Map) Partner(uid string) (string, bool) {
	p, ok := m[uid]
	return p, ok
}

// Pairs returns the number of committed pairs.
func (m Map) Pairs() int {
	return len(m) / 2
}

func (m Map) commit(a, b string) {
	m[a] = b
	m[b] = a
}

// DetectTransfers pairs opposite-signed, equal-magnitude transactions that
// settle within the transfer window and carry enough transfer evidence.
func DetectTransfers(txs []model.Transaction, p Params) Map {
	pairs := make(Map)
	for _, bucket := range groupByAbsAmount(txs) {
		for i, tx := range bucket {
			if pairs.Has(tx.UID) {
				continue
			}

			best, bestScore := -1, 0
			for j := i + 1; j < len(bucket); j++ {
				cand := bucket[j]
				if pairs.Has(cand.UID) || sameSign(tx, cand) {
					continue
				}
				if dayGap(tx, cand) > float64(p.TransferWindowDays) {
					break
				}
				if score := transferScore(tx, cand, p.TransferWeights); score > bestScore {
					best, bestScore = j, score
				}
			}

			if best >= 0 && bestScore >= p.TransferMinScore {
				pairs.commit(tx.UID, bucket[best].UID)
			}
		}
	}
	return pairs
}

func transferScore(a, b model.Transaction, w TransferWeights) int {
	score := 0
	keyword := a.Flags.TransferKeyword || b.Flags.TransferKeyword
	if keyword {
		score += w.Keyword
	}
	if a.Flags.ExplicitInternal || b.Flags.ExplicitInternal {
		score += w.InternalLabel
	}
	if a.Account != "" && b.Account != "" && a.Account != b.Account {
		score += w.AccountsDiffer
	}
	if dayGap(a, b) <= 1 {
		score += w.WithinOneDay
	}
	if keyword && a.RecurrenceKey != "" && a.RecurrenceKey == b.RecurrenceKey {
		score += w.SameRecurrence
	}
	return score
}

// DetectReversals pairs opposite-signed, equal-magnitude transactions from
// similar merchants within the reversal window. Transactions claimed by
// transfers and salary-keyword transactions never take part.
func DetectReversals(txs []model.Transaction, transfers Map, p Params) Map {
	var eligible []model.Transaction
	for _, tx := range txs {
		if !transfers.Has(tx.UID) {
			eligible = append(eligible, tx)
		}
	}

	pairs := make(Map)
	for _, bucket := range groupByAbsAmount(eligible) {
		for i, tx := range bucket {
			if pairs.Has(tx.UID) || tx.Flags.SalaryKeyword {
				continue
			}

			best, bestScore := -1, 0.0
			for j := i + 1; j < len(bucket); j++ {
				cand := bucket[j]
				if pairs.Has(cand.UID) || cand.Flags.SalaryKeyword || sameSign(tx, cand) {
					continue
				}
				if dayGap(tx, cand) > float64(p.ReversalWindowDays) {
					break
				}
				score := textnorm.Jaccard(tx.RecurrenceKey, cand.RecurrenceKey)
				if tx.Flags.RefundKeyword || cand.Flags.RefundKeyword {
					score += p.RefundBonus
				}
				if score > bestScore {
					best, bestScore = j, score
				}
			}

			if best >= 0 && bestScore >= p.ReversalMinScore {
				pairs.commit(tx.UID, bucket[best].UID)
			}
		}
	}
	return pairs
}

// groupByAbsAmount buckets by the two-decimal magnitude and date-sorts each
// bucket. Buckets come back in first-seen order.
func groupByAbsAmount(txs []model.Transaction) [][]model.Transaction {
	index := make(map[string]int)
	var buckets [][]model.Transaction
	for _, tx := range txs {
		key := tx.AbsAmount.StringFixed(2)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], tx)
	}
	for _, b := range buckets {
		sort.SliceStable(b, func(i, j int) bool { return b[i].Date.Before(b[j].Date) })
	}
	return buckets
}

func sameSign(a, b model.Transaction) bool {
	return a.Amount.Sign() == b.Amount.Sign()
}

func dayGap(a, b model.Transaction) float64 {
	d := b.Date.Sub(a.Date).Hours() / 24
	if d < 0 {
		return -d
	}
	return d
}
