// Package analysis runs the full pipeline for one financial year: pairing,
// classification and aggregation over an imported PocketSmith export.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/aggregate"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/classifier"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/fy"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/importer"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/logger"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/merchant"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/pairing"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/runlog"
)

// ImportFormat is the importer format for PocketSmith exports.
const ImportFormat = "pocketsmith"

var (
	// ErrNoFYSelected is returned when no financial year can be chosen.
	ErrNoFYSelected = errors.New("no financial year selected")
	// ErrNoTransactionsForFY is returned when the chosen year has no rows.
	ErrNoTransactionsForFY = errors.New("no transactions for the selected financial year")
)

// Options are the per-run analysis settings.
type Options struct {
	FY              int // 0 picks the default year
	IncludePossible bool
	StrictTransfers bool
	Occupation      string
	Employers       []string // raw names, normalized before use
	Pairing         pairing.Params
	ReviewLimit     int
}

// Dataset is a normalized export covering any number of years.
type Dataset struct {
	Source       string
	Transactions []model.Transaction
	Dropped      []importer.Drop
	Years        []int
}

// Result is one analysed financial year.
type Result struct {
	RunID        string
	FY           int
	Options      Options
	GeneratedAt  time.Time
	Transactions []model.Transaction
	Records      []model.Classification
	Groups       []model.MerchantGroup
	Summary      aggregate.Summary
	Transfers    int // pairs
	Reversals    int // pairs
}

// Load reads and normalizes a PocketSmith CSV.
func Load(path string, set *rules.Set) (*Dataset, error) {
	records, err := importer.DefaultRegistry().ReadFile(path, ImportFormat)
	if err != nil {
		return nil, err
	}
	res, err := importer.Normalize(records, set)
	if err != nil {
		return nil, fmt.Errorf("normalizing %s: %w", path, err)
	}
	return &Dataset{
		Source:       path,
		Transactions: res.Transactions,
		Dropped:      res.Dropped,
		Years:        fy.Available(res.Transactions),
	}, nil
}

// SelectFY returns requested when it is set, otherwise the default year
// for the data at now.
func (d *Dataset) SelectFY(requested int, now time.Time) (int, error) {
	if requested != 0 {
		return requested, nil
	}
	year, ok := fy.Default(d.Years, now)
	if !ok {
		return 0, ErrNoFYSelected
	}
	return year, nil
}

// Groups returns the merchant groups for one year, or all years when endYear is 0.
func (d *Dataset) Groups(endYear int) []model.MerchantGroup {
	txs := d.Transactions
	if endYear != 0 {
		txs = fy.Filter(txs, endYear)
	}
	return merchant.BuildGroups(txs)
}

// Run classifies and aggregates opts.FY. Pairing and recurrence statistics
// only see that year's transactions. intel may be nil.
func Run(ctx context.Context, d *Dataset, set *rules.Set, opts Options, intel classifier.IntelLookup, now time.Time) (*Result, error) {
	year, err := d.SelectFY(opts.FY, now)
	if err != nil {
		return nil, err
	}
	opts.FY = year

	txs := fy.Filter(d.Transactions, year)
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTransactionsForFY, fy.Format(year))
	}

	runID := runlog.NewRunID()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Str("fy", fy.Format(year)).Logger()

	cctx := classifier.NewContext(txs, set, classifier.Options{
		StrictTransfers: opts.StrictTransfers,
		Employers:       normalizeEmployers(opts.Employers),
		Pairing:         opts.Pairing,
	}, intel)
	records := cctx.ClassifyAll(txs)
	groups := merchant.BuildGroups(txs)

	summary := aggregate.Summarize(records, aggregate.Options{
		IncludePossible: opts.IncludePossible,
		ReviewLimit:     opts.ReviewLimit,
	}, intel, len(groups))

	log.Info().
		Int("transactions", len(txs)).
		Int("transfer_pairs", cctx.Transfers.Pairs()).
		Int("reversal_pairs", cctx.Reversals.Pairs()).
		Int("review", summary.ReviewCount).
		Msg("analysis complete")

	return &Result{
		RunID:        runID,
		FY:           year,
		Options:      opts,
		GeneratedAt:  now,
		Transactions: txs,
		Records:      records,
		Groups:       groups,
		Summary:      summary,
		Transfers:    cctx.Transfers.Pairs(),
		Reversals:    cctx.Reversals.Pairs(),
	}, nil
}

// LogEntry is the run log row for r.
func (r *Result) LogEntry() runlog.Entry {
	s := r.Summary
	return runlog.Entry{
		Timestamp: r.GeneratedAt,
		RunID:     r.RunID,
		Action:    runlog.ActionAnalyze,
		FY:        fy.Format(r.FY),
		Details: fmt.Sprintf("transactions=%d income=%s deductions=%s review=%d",
			s.TransactionCount,
			s.AssessableIncome.StringFixed(2),
			s.IncludedDeductions.StringFixed(2),
			s.ReviewCount),
	}
}

func normalizeEmployers(names []string) []string {
	var out []string
	for _, n := range names {
		out = append(out, classifier.ParseEmployers(n)...)
	}
	return out
}
