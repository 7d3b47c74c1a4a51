package importer

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/merchant"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/textnorm"
)

// ErrNoValidRows is returned when no record survives date and amount parsing.
var ErrNoValidRows = errors.New("no valid transaction rows")

var isoDate = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)

// Drop describes a record skipped during normalization.
type Drop struct {
	Line   int
	Reason string
}

// Result is the outcome of normalizing a batch of records.
type Result struct {
	Transactions []model.Transaction // sorted by date, stable
	Dropped      []Drop
}

// Normalize converts raw records into transactions. Records with an
// unparseable date or amount are dropped and reported in Result.Dropped;
// ErrNoValidRows is returned only if nothing survives.
func Normalize(records []Record, set *rules.Set) (Result, error) {
	var res Result
	for _, rec := range records {
		tx, err := normalizeRecord(rec, set)
		if err != nil {
			res.Dropped = append(res.Dropped, Drop{Line: rec.Line, Reason: err.Error()})
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}

	if len(res.Transactions) == 0 {
		return res, ErrNoValidRows
	}

	sort.SliceStable(res.Transactions, func(i, j int) bool {
		return res.Transactions[i].Date.Before(res.Transactions[j].Date)
	})
	return res, nil
}

func normalizeRecord(rec Record, set *rules.Set) (model.Transaction, error) {
	dateText := rec.Get(ColDate)
	date, err := ParseDate(dateText)
	if err != nil {
		return model.Transaction{}, err
	}

	amount, err := ParseAmount(rec.Get(ColAmount))
	if err != nil {
		return model.Transaction{}, err
	}

	name := rec.Get(ColMerchant)
	if name == "" {
		name = model.UnknownMerchant
	}

	uid := rec.Get(ColID)
	if uid == "" {
		uid = fmt.Sprintf("row-%d", rec.Line)
	}

	currency := strings.ToUpper(rec.Get(ColCurrency))
	if currency == "" {
		currency = model.DefaultCurrency
	}

	tx := model.Transaction{
		UID:                 uid,
		SourceRow:           rec.Line,
		DateText:            dateText,
		Date:                date,
		FYEndYear:           model.FYEndYearFor(date),
		Amount:              amount,
		AbsAmount:           amount.Abs(),
		Merchant:            name,
		MerchantChangedFrom: rec.Get(ColMerchantChangedFrom),
		Account:             rec.Get(ColAccount),
		Category:            rec.Get(ColCategory),
		ParentCategory:      rec.Get(ColParentCategories),
		Memo:                rec.Get(ColMemo),
		Note:                rec.Get(ColNote),
		Currency:            currency,
		TransactionType:     strings.ToLower(rec.Get(ColTransactionType)),
		Bank:                rec.Get(ColBank),
		AccountNumber:       rec.Get(ColAccountNumber),
		PocketSmithID:       rec.Get(ColID),
		Labels:              ExtractLabels(rec.Get(ColLabels), rec.Get(ColNote)),
	}

	tx.TextMerchant = textnorm.Join(tx.Merchant, tx.MerchantChangedFrom)
	tx.TextMeta = textnorm.Join(tx.Memo, tx.Note, strings.Join(tx.Labels, " "))
	tx.TextCategory = textnorm.Join(tx.Category, tx.ParentCategory)
	tx.MerchantLookupKey = merchant.DeriveLookupKey(tx.Merchant)
	tx.RecurrenceKey = textnorm.RecurrenceKey(tx.TextMerchant)
	tx.Flags = deriveFlags(tx, set)
	return tx, nil
}

func deriveFlags(tx model.Transaction, set *rules.Set) model.Flags {
	text := tx.KeywordText()
	kw := set.Keywords
	internal := tx.HasAnyLabel(set.Labels.Internal)
	return model.Flags{
		TransferKeyword:       textnorm.ContainsAny(text, kw.Transfer) || internal,
		SalaryKeyword:         textnorm.ContainsAny(text, kw.Salary),
		InterestKeyword:       textnorm.ContainsAny(text, kw.Interest),
		RefundKeyword:         textnorm.ContainsAny(text, kw.Refund),
		TaxPaymentKeyword:     textnorm.ContainsAny(text, kw.TaxPayment),
		TaxAgentKeyword:       textnorm.ContainsAny(text, kw.TaxAgent),
		ExplicitInternal:      internal,
		ExplicitDeductible:    tx.HasAnyLabel(set.Labels.Deductible),
		ExplicitNonDeductible: tx.HasAnyLabel(set.Labels.NonDeductible),
	}
}

// ParseDate parses a strict YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	if !isoDate.MatchString(s) {
		return time.Time{}, fmt.Errorf("parsing date %q: not YYYY-MM-DD", s)
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	if d.Year() == 0 {
		return time.Time{}, fmt.Errorf("parsing date %q: year zero", s)
	}
	return d, nil
}

// ParseAmount parses a decimal amount, ignoring thousands separators and dollar signs.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(s))
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: empty", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

var (
	labelSplit  = regexp.MustCompile(`[\s,;|]+`)
	hashtag     = regexp.MustCompile(`#[A-Za-z0-9._-]+`)
	labelStrip  = regexp.MustCompile(`[^a-z0-9._-]`)
	leadingHash = regexp.MustCompile(`^#+`)
)

// ExtractLabels collects labels from the Labels field and #hashtags in the
// note, normalized and deduplicated in first-seen order.
func ExtractLabels(labels, note string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(raw string) {
		l := NormalizeLabel(raw)
		if l == "" || seen[l] {
			return
		}
		seen[l] = true
		out = append(out, l)
	}

	for _, part := range labelSplit.Split(labels, -1) {
		add(part)
	}
	for _, tag := range hashtag.FindAllString(note, -1) {
		add(strings.TrimPrefix(tag, "#"))
	}
	return out
}

// NormalizeLabel lowercases a label and strips leading hashes and
// characters outside [a-z0-9._-].
func NormalizeLabel(s string) string {
	out := strings.ToLower(strings.TrimSpace(s))
	out = leadingHash.ReplaceAllString(out, "")
	return labelStrip.ReplaceAllString(out, "")
}
