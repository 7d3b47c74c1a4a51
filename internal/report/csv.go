package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/classifier"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// ClassifiedHeader is the header row of the classified transactions export.
var ClassifiedHeader = []string{
	"Date",
	"Merchant",
	"Merchant Lookup Key",
	"Account",
	"Amount",
	"Currency",
	"Treatment",
	"Tax Category",
	"ATO Label",
	"Confidence",
	"Merchant Business Type",
	"Merchant Business Category",
	"Merchant ABN",
	"Merchant Main Place",
	"Reason",
	"Labels",
	"PocketSmith Category",
	"Parent Category",
	"ID",
}

// MerchantHeader is the header row of the merchant intelligence export.
var MerchantHeader = []string{
	"Merchant Lookup Key",
	"Sample Merchant",
	"Transaction Count",
	"Gross Amount",
	"Business Type",
	"Business Category",
	"Confidence",
	"ABN",
	"ABN Name",
	"ABN Entity Type",
	"Main Place of Business",
	"Sources",
}

// WriteClassified writes one row per classified transaction. intel may be nil.
func WriteClassified(w io.Writer, records []model.Classification, intel classifier.IntelLookup) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ClassifiedHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, rec := range records {
		tx := rec.Tx
		mi, _ := lookup(intel, tx.MerchantLookupKey)
		row := []string{
			tx.DateText,
			tx.Merchant,
			tx.MerchantLookupKey,
			tx.Account,
			tx.Amount.StringFixed(2),
			tx.Currency,
			rec.Treatment.Display(),
			rec.TaxCategory,
			rec.ATOLabel,
			string(rec.Confidence),
			mi.BusinessType,
			mi.BusinessCategory,
			mi.ABN,
			mi.MainPlaceOfBusiness,
			rec.Reason,
			strings.Join(tx.Labels, "|"),
			tx.Category,
			tx.ParentCategory,
			tx.PocketSmithID,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteMerchants writes one row per merchant group. intel may be nil.
func WriteMerchants(w io.Writer, groups []model.MerchantGroup, intel classifier.IntelLookup) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MerchantHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, g := range groups {
		mi, ok := lookup(intel, g.LookupKey)
		confidence := model.ConfidenceLow
		if ok {
			confidence = mi.Confidence()
		}
		row := []string{
			g.LookupKey,
			g.SampleMerchant,
			fmt.Sprint(g.TransactionCount),
			g.TotalAbsAmount.StringFixed(2),
			mi.BusinessType,
			mi.BusinessCategory,
			string(confidence),
			mi.ABN,
			mi.ABNName,
			mi.ABNEntityType,
			mi.MainPlaceOfBusiness,
			strings.Join(mi.SourceURLs, " | "),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func lookup(intel classifier.IntelLookup, key string) (model.MerchantIntel, bool) {
	if intel == nil || key == "" {
		return model.MerchantIntel{}, false
	}
	return intel.Lookup(key)
}
