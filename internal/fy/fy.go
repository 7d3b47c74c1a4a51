// Package fy handles Australian financial years, identified by the calendar
// year in which they end on 30 June.
package fy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// Zone is the timezone used to decide which financial year has ended.
const Zone = "Australia/Sydney"

// Format returns a financial year label like "FY2025".
func Format(endYear int) string {
	return fmt.Sprintf("FY%d", endYear)
}

// Parse parses "FY2025", "fy2025" or "2025" into an end year.
func Parse(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= 2 && strings.EqualFold(trimmed[:2], "fy") {
		trimmed = trimmed[2:]
	}
	year, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid financial year %q: %w", s, err)
	}
	if year < 1900 || year > 9999 {
		return 0, fmt.Errorf("invalid financial year %q: out of range", s)
	}
	return year, nil
}

// PeriodText returns the FY span, e.g. "1 Jul 2024 - 30 Jun 2025".
func PeriodText(endYear int) string {
	return fmt.Sprintf("1 Jul %d - 30 Jun %d", endYear-1, endYear)
}

// Bounds returns the first and last day of the FY as UTC dates.
func Bounds(endYear int) (start, end time.Time) {
	start = time.Date(endYear-1, time.July, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(endYear, time.June, 30, 0, 0, 0, 0, time.UTC)
	return start, end
}

// LatestEnded returns the most recent FY that has fully ended at now, in Sydney time.
func LatestEnded(now time.Time) int {
	loc, err := time.LoadLocation(Zone)
	if err == nil {
		now = now.In(loc)
	}
	if now.Month() >= time.July {
		return now.Year()
	}
	return now.Year() - 1
}

// Available returns the distinct FYs present in txs, ascending.
func Available(txs []model.Transaction) []int {
	seen := make(map[int]bool)
	var years []int
	for _, tx := range txs {
		if !seen[tx.FYEndYear] {
			seen[tx.FYEndYear] = true
			years = append(years, tx.FYEndYear)
		}
	}
	sort.Ints(years)
	return years
}

// Default picks the latest available FY that has ended, or the latest
// available FY when all of them are still open. ok is false when none are available.
func Default(available []int, now time.Time) (year int, ok bool) {
	if len(available) == 0 {
		return 0, false
	}
	latest := LatestEnded(now)
	best := 0
	for _, y := range available {
		if y <= latest && y > best {
			best = y
		}
	}
	if best != 0 {
		return best, true
	}
	return available[len(available)-1], true
}

// Filter returns the transactions that fall in endYear.
func Filter(txs []model.Transaction, endYear int) []model.Transaction {
	var out []model.Transaction
	for _, tx := range txs {
		if tx.FYEndYear == endYear {
			out = append(out, tx)
		}
	}
	return out
}
