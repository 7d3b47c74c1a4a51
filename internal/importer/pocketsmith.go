package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// PocketSmith export column names.
const (
	ColDate                = "Date"
	ColAmount              = "Amount"
	ColMerchant            = "Merchant"
	ColMerchantChangedFrom = "Merchant Changed From"
	ColCategory            = "Category"
	ColParentCategories    = "Parent Categories"
	ColLabels              = "Labels"
	ColMemo                = "Memo"
	ColNote                = "Note"
	ColAccount             = "Account"
	ColID                  = "ID"
	ColCurrency            = "Currency"
	ColTransactionType     = "Transaction Type"
	ColBank                = "Bank"
	ColAccountNumber       = "Account Number"
)

// PocketSmithParser parses PocketSmith transaction CSV exports.
type PocketSmithParser struct{}

// Format returns the parser name.
func (p *PocketSmithParser) Format() string { return "pocketsmith" }

// Parse reads a PocketSmith CSV. Blank rows are skipped; short rows are
// padded with empty fields.
func (p *PocketSmithParser) Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading pocketsmith CSV: %w", err)
	}

	var kept [][]string
	for _, row := range rows {
		if !blank(row) {
			kept = append(kept, row)
		}
	}
	if len(kept) < 2 {
		return nil, nil
	}

	headers := make([]string, len(kept[0]))
	for i, h := range kept[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	records := make([]Record, 0, len(kept)-1)
	for i, row := range kept[1:] {
		fields := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(row) {
				fields[h] = row[j]
			} else {
				fields[h] = ""
			}
		}
		records = append(records, Record{Line: i + 2, Fields: fields})
	}
	return records, nil
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
