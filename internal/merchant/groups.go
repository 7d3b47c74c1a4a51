package merchant

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// BuildGroups aggregates transactions by lookup key. Each group's sample
// merchant is the most frequent literal merchant string; groups are sorted
// by total absolute amount, largest first.
func BuildGroups(txs []model.Transaction) []model.MerchantGroup {
	type acc struct {
		group  model.MerchantGroup
		counts map[string]int
		order  []string
	}

	byKey := make(map[string]*acc)
	var keys []string
	for _, tx := range txs {
		key := tx.MerchantLookupKey
		if key == "" {
			key = DeriveLookupKey(tx.Merchant)
		}
		if key == "" {
			continue
		}

		a, ok := byKey[key]
		if !ok {
			a = &acc{
				group:  model.MerchantGroup{LookupKey: key, SampleMerchant: tx.Merchant, TotalAbsAmount: decimal.Zero},
				counts: make(map[string]int),
			}
			byKey[key] = a
			keys = append(keys, key)
		}
		a.group.TransactionCount++
		a.group.TotalAbsAmount = a.group.TotalAbsAmount.Add(tx.AbsAmount)
		if _, seen := a.counts[tx.Merchant]; !seen {
			a.order = append(a.order, tx.Merchant)
		}
		a.counts[tx.Merchant]++
		if a.group.SampleMerchant == "" || strings.Contains(strings.ToLower(a.group.SampleMerchant), "unknown") {
			a.group.SampleMerchant = tx.Merchant
		}
	}

	groups := make([]model.MerchantGroup, 0, len(keys))
	for _, key := range keys {
		a := byKey[key]
		best, bestCount := a.group.SampleMerchant, 0
		for _, name := range a.order {
			if a.counts[name] > bestCount {
				best, bestCount = name, a.counts[name]
			}
		}
		a.group.SampleMerchant = best
		groups = append(groups, a.group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].TotalAbsAmount.GreaterThan(groups[j].TotalAbsAmount)
	})
	return groups
}
