// Package report renders an analysed financial year as a Markdown
// submission pack and CSV exports.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/aggregate"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/fy"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// ReviewItems is how many review rows the pack lists.
const ReviewItems = 20

// Pack is everything the submission pack shows.
type Pack struct {
	SourceName      string
	FY              int
	Occupation      string
	Employers       []string
	IncludePossible bool
	GeneratedAt     time.Time
	Summary         aggregate.Summary
}

var methodNotes = []string{
	"Merchant transaction names are the primary classification signal.",
	"Merchant web enrichment can be run (ABR/ABN lookup + web search) to classify each merchant and guide tax treatment.",
	"PocketSmith categories are used only as low-confidence fallback when merchant text is inconclusive.",
	"Internal transfers and mirrored reversals are excluded from income/deduction totals.",
	"This is a preparatory draft for accountant review, not a lodgement-ready declaration.",
}

var evidenceChecklist = []string{
	"Receipts/invoices for all claimed work-related expenses.",
	"Basis for any private/work apportionment (internet, phone, subscriptions).",
	"Work travel substantiation (purpose, diary/logbook where required).",
	"Tax agent invoices and donation receipts (DGR confirmation).",
	"Clarification for all items listed in the review table above.",
}

var accountantQuestions = []string{
	"Confirm whether any uploaded accounts are business/non-personal accounts and adjust inclusions.",
	"Confirm treatment of ATO-related credits/debits and any prior-year adjustments.",
	"Validate any potential investment-related amounts that may not belong in employee deductions.",
	"Confirm work-related necessity and apportionment percentages for possible deductions.",
}

// Markdown renders the submission pack.
func Markdown(p Pack) string {
	s := p.Summary
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	source := p.SourceName
	if source == "" {
		source = "(unknown)"
	}
	occupation := "(not supplied)"
	if p.Occupation != "" {
		occupation = p.Occupation
	}
	employers := "(none supplied)"
	if len(p.Employers) > 0 {
		employers = strings.Join(p.Employers, ", ")
	}

	line("# Tax Return Submission Pack (Australia - Employee)")
	line("")
	line("Generated: %s", FormatGenerated(p.GeneratedAt))
	line("Source CSV: %s", source)
	line("Financial Year: %s (%s)", fy.Format(p.FY), fy.PeriodText(p.FY))
	line("Occupation: %s", occupation)
	line("Known employers used in matching: %s", employers)
	line("")

	line("## Method Notes")
	for _, n := range methodNotes {
		line("- %s", n)
	}
	line("")

	line("## Income Schedule")
	line("| Category | Transactions | Amount (AUD) | Confidence |")
	line("| --- | ---: | ---: | --- |")
	if len(s.IncomeRows) == 0 {
		line("| None identified | 0 | $0.00 | low |")
	}
	for _, r := range s.IncomeRows {
		line("| %s | %d | %s | %s |", escapeMarkdown(r.Category), r.Count, FormatAUD(r.Amount), r.DominantConfidence())
	}
	line("")
	line("Total assessable income identified: **%s**", FormatAUD(s.AssessableIncome))
	line("")

	likely, possible := splitDeductions(s.DeductionRows)
	writeDeductions(line, "## Deduction Schedule - Likely", likely)
	line("Total likely deductions: **%s**", FormatAUD(s.LikelyDeductions))
	line("")
	writeDeductions(line, "## Deduction Schedule - Possible (Review Required)", possible)
	line("Total possible deductions: **%s**", FormatAUD(s.PossibleDeductions))
	included := "likely deductions only"
	if p.IncludePossible {
		included = "includes possible deductions"
	}
	line("Included in draft total: **%s** (%s)", FormatAUD(s.IncludedDeductions), included)
	line("")

	line("## Exclusions and Non-Deductible")
	line("- Internal transfers excluded: %s", FormatAUD(s.InternalTransfers))
	line("- Reversals/refunds excluded: %s", FormatAUD(s.ExcludedRefunds))
	line("- Non-deductible/private expenses identified: %s", FormatAUD(s.NonDeductible))
	line("")

	line("## Merchant Intelligence Coverage")
	line("- Unique merchants in FY: %s", FormatCount(s.MerchantCount))
	line("- Merchants web-enriched: %s", FormatCount(s.EnrichedMerchants))
	line("- Merchants with resolved business category: %s", FormatCount(s.ResolvedMerchants))
	line("")

	line("## Priority Accountant Review Items")
	line("| Date | Merchant | Amount (AUD) | Suggested Treatment | Reason |")
	line("| --- | --- | ---: | --- | --- |")
	if len(s.ReviewRows) == 0 {
		line("| - | - | $0.00 | - | No priority review items in top list |")
	}
	for i, r := range s.ReviewRows {
		if i == ReviewItems {
			break
		}
		line("| %s | %s | %s | %s | %s |",
			r.Tx.DateText,
			escapeMarkdown(r.Tx.Merchant),
			FormatAUD(r.Tx.AbsAmount),
			escapeMarkdown(r.Treatment.Display()),
			escapeMarkdown(r.Reason))
	}
	line("")

	line("## Evidence Checklist")
	for _, e := range evidenceChecklist {
		line("- %s", e)
	}
	line("")

	line("## Accountant Questions")
	for i, q := range accountantQuestions {
		if i == len(accountantQuestions)-1 {
			fmt.Fprintf(&b, "%d. %s", i+1, q)
			break
		}
		line("%d. %s", i+1, q)
	}
	return b.String()
}

func splitDeductions(rows []aggregate.Row) (likely, possible []aggregate.Row) {
	for _, r := range rows {
		switch r.Treatment {
		case model.TreatmentDeductionLikely:
			likely = append(likely, r)
		case model.TreatmentDeductionPossible:
			possible = append(possible, r)
		}
	}
	return likely, possible
}

func writeDeductions(line func(string, ...any), heading string, rows []aggregate.Row) {
	line(heading)
	line("| ATO Label | Category | Transactions | Amount (AUD) | Confidence |")
	line("| --- | --- | ---: | ---: | --- |")
	if len(rows) == 0 {
		line("| - | None identified | 0 | $0.00 | low |")
	}
	for _, r := range rows {
		line("| %s | %s | %d | %s | %s |", dash(r.ATOLabel), escapeMarkdown(r.Category), r.Count, FormatAUD(r.Amount), r.DominantConfidence())
	}
	line("")
}
