package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/fy"
)

var (
	printer = message.NewPrinter(language.MustParse("en-AU"))
	caser   = cases.Title(language.English)
)

// generatedLayout matches the en-AU short date-time style.
const generatedLayout = "02 Jan 2006, 03:04 pm"

// FormatAUD renders an amount as Australian dollars, e.g. "$1,234.50" or "-$12.00".
func FormatAUD(d decimal.Decimal) string {
	r := d.Round(2)
	sign := ""
	if r.IsNegative() {
		sign = "-"
		r = r.Abs()
	}
	whole := r.IntPart()
	cents := r.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()
	return fmt.Sprintf("%s$%s.%02d", sign, printer.Sprintf("%d", whole), cents)
}

// FormatCount renders a count with thousands separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatGenerated renders t in Sydney time.
func FormatGenerated(t time.Time) string {
	if loc, err := time.LoadLocation(fy.Zone); err == nil {
		t = t.In(loc)
	}
	return t.Format(generatedLayout)
}

// DisplayCategory turns a business category like "office_supplies" into "Office Supplies".
func DisplayCategory(category string) string {
	category = strings.TrimSpace(strings.ReplaceAll(category, "_", " "))
	if category == "" {
		return "-"
	}
	return caser.String(category)
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
