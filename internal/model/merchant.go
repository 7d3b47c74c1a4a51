package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryUnknown is the business category of an unresolved merchant.
const CategoryUnknown = "unknown"

// CategoryBankingEvent marks internal transfers and other bank-side movements.
const CategoryBankingEvent = "banking_event"

// MerchantIntel is a best-effort business identity for a merchant lookup key.
type MerchantIntel struct {
	LookupKey                string    `json:"lookupKey"`
	MerchantRaw              string    `json:"merchantRaw"`
	MerchantLookupName       string    `json:"merchantLookupName"`
	BusinessType             string    `json:"businessType"`
	BusinessCategory         string    `json:"businessCategory"`
	ClassificationConfidence string    `json:"classificationConfidence"`
	ClassificationReason     string    `json:"classificationReason"`
	ABN                      string    `json:"abn"`
	ABNName                  string    `json:"abnName"`
	ABNEntityType            string    `json:"abnEntityType"`
	ABNStatus                string    `json:"abnStatus"`
	MainPlaceOfBusiness      string    `json:"mainPlaceOfBusiness"`
	SourceURLs               []string  `json:"sourceUrls"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// Category returns the trimmed, lowercased business category.
func (m MerchantIntel) Category() string {
	return strings.ToLower(strings.TrimSpace(m.BusinessCategory))
}

// Resolved reports whether the record carries a usable business category.
func (m MerchantIntel) Resolved() bool {
	c := m.Category()
	return c != "" && c != CategoryUnknown
}

// Confidence returns the normalized classification confidence.
func (m MerchantIntel) Confidence() Confidence {
	return ParseConfidence(m.ClassificationConfidence)
}

// MerchantRequest is one item of an enrichment batch.
type MerchantRequest struct {
	LookupKey string `json:"lookupKey"`
	Merchant  string `json:"merchant"`
}

// MerchantGroup aggregates transactions sharing a merchant lookup key.
type MerchantGroup struct {
	LookupKey        string
	SampleMerchant   string
	TransactionCount int
	TotalAbsAmount   decimal.Decimal
}

// Request returns the enrichment request for the group.
func (g MerchantGroup) Request() MerchantRequest {
	return MerchantRequest{LookupKey: g.LookupKey, Merchant: g.SampleMerchant}
}
