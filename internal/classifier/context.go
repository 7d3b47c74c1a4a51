// Package classifier assigns a tax treatment to every transaction through
// an ordered rule cascade.
package classifier

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/pairing"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/textnorm"
)

// IntelLookup resolves merchant intelligence by lookup key.
type IntelLookup interface {
	Lookup(key string) (model.MerchantIntel, bool)
}

// IntelMap is an in-memory IntelLookup.
type IntelMap map[string]model.MerchantIntel

// Lookup implements IntelLookup.
func (m IntelMap) Lookup(key string) (model.MerchantIntel, bool) {
	intel, ok := m[key]
	return intel, ok
}

// CreditStat counts credits sharing a recurrence key.
type CreditStat struct {
	Count int
	Total decimal.Decimal
}

// Options are the per-run switches supplied by the caller.
type Options struct {
	StrictTransfers bool
	Employers       []string // normalized employer names
	Pairing         pairing.Params
}

// Context is everything the cascade consults besides the transaction itself.
type Context struct {
	Rules       *rules.Set
	Transfers   pairing.Map
	Reversals   pairing.Map
	CreditStats map[string]CreditStat
	Employers   []string
	Intel       IntelLookup
}

// NewContext runs both pairing passes and the credit recurrence count over
// txs. With StrictTransfers off, no transfer pairs are formed.
func NewContext(txs []model.Transaction, set *rules.Set, opts Options, intel IntelLookup) *Context {
	transfers := pairing.Map{}
	if opts.StrictTransfers {
		transfers = pairing.DetectTransfers(txs, opts.Pairing)
	}
	return &Context{
		Rules:       set,
		Transfers:   transfers,
		Reversals:   pairing.DetectReversals(txs, transfers, opts.Pairing),
		CreditStats: BuildCreditStats(txs),
		Employers:   opts.Employers,
		Intel:       intel,
	}
}

// BuildCreditStats counts credits by recurrence key.
func BuildCreditStats(txs []model.Transaction) map[string]CreditStat {
	stats := make(map[string]CreditStat)
	for _, tx := range txs {
		if !tx.IsCredit() || tx.RecurrenceKey == "" {
			continue
		}
		s := stats[tx.RecurrenceKey]
		s.Count++
		s.Total = s.Total.Add(tx.Amount)
		stats[tx.RecurrenceKey] = s
	}
	return stats
}

// ParseEmployers splits a comma-separated list and normalizes each name.
func ParseEmployers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if name := textnorm.Normalize(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (c *Context) matchesEmployer(tx model.Transaction) bool {
	for _, name := range c.Employers {
		if strings.Contains(tx.TextMerchant, name) {
			return true
		}
	}
	return false
}

func (c *Context) lookupIntel(tx model.Transaction) (model.MerchantIntel, bool) {
	if c.Intel == nil || tx.MerchantLookupKey == "" {
		return model.MerchantIntel{}, false
	}
	return c.Intel.Lookup(tx.MerchantLookupKey)
}
