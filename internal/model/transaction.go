package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when a source row carries no currency.
const DefaultCurrency = "AUD"

// UnknownMerchant is the display name for rows with a blank merchant.
const UnknownMerchant = "Unknown merchant"

// Transaction is a normalized PocketSmith row. It is never mutated after
// the importer builds it.
type Transaction struct {
	UID       string
	SourceRow int // 1-based CSV line, header is line 1
	DateText  string
	Date      time.Time // UTC midnight
	FYEndYear int

	Amount    decimal.Decimal // positive = inflow, negative = outflow
	AbsAmount decimal.Decimal

	Merchant            string
	MerchantChangedFrom string
	Account             string
	Category            string
	ParentCategory      string
	Memo                string
	Note                string
	Currency            string
	TransactionType     string
	Bank                string
	AccountNumber       string
	PocketSmithID       string
	Labels              []string

	TextMerchant      string
	TextMeta          string
	TextCategory      string
	MerchantLookupKey string
	RecurrenceKey     string

	Flags Flags
}

// Flags holds the keyword-family and explicit-label signals derived at
// normalization time.
type Flags struct {
	TransferKeyword   bool
	SalaryKeyword     bool
	InterestKeyword   bool
	RefundKeyword     bool
	TaxPaymentKeyword bool
	TaxAgentKeyword   bool

	ExplicitInternal      bool
	ExplicitDeductible    bool
	ExplicitNonDeductible bool
}

// IsCredit reports whether the transaction is an inflow.
func (t Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// IsDebit reports whether the transaction is an outflow.
func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// KeywordText is the merchant and meta text that keyword families are tested against.
func (t Transaction) KeywordText() string {
	return t.TextMerchant + " " + t.TextMeta
}

// HasAnyLabel reports whether any of wanted is among the transaction's labels.
func (t Transaction) HasAnyLabel(wanted []string) bool {
	for _, w := range wanted {
		if slices.Contains(t.Labels, w) {
			return true
		}
	}
	return false
}

// FYEndYearFor returns the Australian financial year (ending 30 June) that d falls in.
func FYEndYearFor(d time.Time) int {
	if d.Month() >= time.July {
		return d.Year() + 1
	}
	return d.Year()
}
