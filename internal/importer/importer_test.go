package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
)

const samplePath = "../../testdata/pocketsmith_sample.csv"

func TestPocketSmithParser_Parse(t *testing.T) {
	records, err := DefaultRegistry().ReadFile(samplePath, "PocketSmith")
	require.NoError(t, err)
	require.Len(t, records, 16)

	assert.Equal(t, 2, records[0].Line)
	assert.Equal(t, "Savings Maximiser transfer", records[0].Get(ColMerchant))
	assert.Equal(t, "3,200.00", records[3].Get(ColAmount))
	assert.Equal(t, "", records[11].Get(ColID))
	assert.Equal(t, 13, records[11].Line)
}

func TestPocketSmithParser_BlankRowsAndShortRows(t *testing.T) {
	in := "\ufeffDate,Amount,Merchant\n,,\n2025-01-02,-5\n\n2025-01-03,-6,Cafe\n"
	records, err := (&PocketSmithParser{}).Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "2025-01-02", records[0].Get(ColDate))
	assert.Equal(t, "", records[0].Get(ColMerchant))
	assert.Equal(t, 2, records[0].Line)
	assert.Equal(t, "Cafe", records[1].Get(ColMerchant))
	assert.Equal(t, 3, records[1].Line)
}

func TestPocketSmithParser_HeaderOnly(t *testing.T) {
	records, err := (&PocketSmithParser{}).Parse(strings.NewReader("Date,Amount\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("pocketsmith"))
	assert.Nil(t, r.Get("chase"))
	assert.Panics(t, func() { r.Register(&PocketSmithParser{}) })

	_, err := r.ReadFile(samplePath, "quicken")
	assert.ErrorContains(t, err, `unknown import format "quicken"`)
}

func TestNormalize_Sample(t *testing.T) {
	records, err := DefaultRegistry().ReadFile(samplePath, "pocketsmith")
	require.NoError(t, err)

	res, err := Normalize(records, rules.Default())
	require.NoError(t, err)
	assert.Len(t, res.Transactions, 14)
	require.Len(t, res.Dropped, 2)
	assert.Equal(t, 14, res.Dropped[0].Line)
	assert.Contains(t, res.Dropped[0].Reason, "parsing date")
	assert.Equal(t, 15, res.Dropped[1].Line)
	assert.Contains(t, res.Dropped[1].Reason, "parsing amount")

	// Sorted by date: the prior-year row comes first.
	first := res.Transactions[0]
	assert.Equal(t, "tx-015", first.UID)
	assert.Equal(t, 2024, first.FYEndYear)

	byUID := make(map[string]int)
	for i, tx := range res.Transactions {
		byUID[tx.UID] = i
	}

	payroll := res.Transactions[byUID["tx-004"]]
	assert.Equal(t, "3200", payroll.Amount.String())
	assert.Equal(t, 2025, payroll.FYEndYear)
	assert.Equal(t, "nsw health", payroll.MerchantLookupKey)
	assert.True(t, payroll.Flags.SalaryKeyword)
	assert.False(t, payroll.Flags.TransferKeyword)

	assert.Equal(t, "AUD", res.Transactions[byUID["tx-007"]].Currency)
	assert.Equal(t, "AUD", res.Transactions[byUID["tx-016"]].Currency)
	assert.True(t, res.Transactions[byUID["tx-016"]].Flags.InterestKeyword)

	coles := res.Transactions[byUID["row-13"]]
	assert.Equal(t, []string{"private", "household"}, coles.Labels)
	assert.True(t, coles.Flags.ExplicitNonDeductible)
	assert.Equal(t, "debit", coles.TransactionType)

	hr := res.Transactions[byUID["tx-011"]]
	assert.True(t, hr.Flags.ExplicitDeductible)
	assert.True(t, hr.Flags.TaxAgentKeyword)
	assert.Equal(t, "h&r block", hr.TextMerchant)
	assert.Equal(t, "tax", hr.TextMeta)

	save := res.Transactions[byUID["tx-001"]]
	assert.True(t, save.Flags.TransferKeyword)
	assert.Equal(t, "internal transfer", save.MerchantLookupKey)
	assert.Equal(t, "savings maximiser", save.RecurrenceKey)
	assert.True(t, save.AbsAmount.IsPositive())
}

func TestNormalize_NoValidRows(t *testing.T) {
	records := []Record{
		{Line: 2, Fields: map[string]string{ColDate: "2025-13-01", ColAmount: "1"}},
		{Line: 3, Fields: map[string]string{ColDate: "2025-01-01", ColAmount: ""}},
	}
	res, err := Normalize(records, rules.Default())
	assert.True(t, errors.Is(err, ErrNoValidRows))
	assert.Len(t, res.Dropped, 2)

	_, err = Normalize(nil, rules.Default())
	assert.ErrorIs(t, err, ErrNoValidRows)
}

func TestNormalize_DefaultsAndInternalLabel(t *testing.T) {
	records := []Record{{Line: 7, Fields: map[string]string{
		ColDate:   "2025-02-01",
		ColAmount: "-12.50",
		ColLabels: "Internal",
	}}}
	res, err := Normalize(records, rules.Default())
	require.NoError(t, err)

	tx := res.Transactions[0]
	assert.Equal(t, "row-7", tx.UID)
	assert.Equal(t, "Unknown merchant", tx.Merchant)
	assert.True(t, tx.Flags.ExplicitInternal)
	assert.True(t, tx.Flags.TransferKeyword)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"-1,234.50", "-1234.5", false},
		{"$45", "45", false},
		{" 12.00 ", "12", false},
		{"", "", true},
		{"$", "", true},
		{"twelve", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())

	for _, bad := range []string{"2024-7-1", "01/07/2024", "2024-02-30", "0000-01-01", ""} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtractLabels(t *testing.T) {
	got := ExtractLabels("Tax, #Work; private|tax", "Paid via #Internal and #work-trip.")
	assert.Equal(t, []string{"tax", "work", "private", "internal", "work-trip."}, got)
	assert.Empty(t, ExtractLabels("", ""))
}
