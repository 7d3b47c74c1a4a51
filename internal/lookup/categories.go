package lookup

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/textnorm"
)

// CategoriesVersion is the category table schema version this build understands.
const CategoriesVersion = 1

//go:embed categories.yaml
var categoriesYAML []byte

// Categories is a versioned business category scoring table.
type Categories struct {
	Version int            `yaml:"version"`
	Scoring Scoring        `yaml:"scoring"`
	Rules   []CategoryRule `yaml:"rules"`
}

// Scoring holds the keyword weights and confidence cut-offs.
type Scoring struct {
	WordWeight   int `yaml:"word_weight"`
	PhraseWeight int `yaml:"phrase_weight"`
	ABNBonus     int `yaml:"abn_bonus"`
	HighScore    int `yaml:"high_score"`
	MediumScore  int `yaml:"medium_score"`
}

// CategoryRule maps keywords to one business category.
type CategoryRule struct {
	Category     string   `yaml:"category"`
	BusinessType string   `yaml:"business_type"`
	Keywords     []string `yaml:"keywords"`
}

// DefaultCategories returns the built-in category table.
func DefaultCategories() *Categories {
	c, err := ParseCategories(categoriesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded categories.yaml is invalid: %v", err))
	}
	return c
}

// ParseCategories decodes and checks a category table.
func ParseCategories(data []byte) (*Categories, error) {
	var c Categories
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing categories: %w", err)
	}
	if c.Version != CategoriesVersion {
		return nil, fmt.Errorf("unsupported categories version %d (want %d)", c.Version, CategoriesVersion)
	}
	if len(c.Rules) == 0 {
		return nil, fmt.Errorf("categories: no rules")
	}
	for i, r := range c.Rules {
		if r.Category == "" || r.BusinessType == "" || len(r.Keywords) == 0 {
			return nil, fmt.Errorf("categories: rule %d needs category, business_type and keywords", i+1)
		}
	}
	return &c, nil
}

// Evidence is everything known about a merchant when it is categorized.
type Evidence struct {
	MerchantRaw string
	LookupName  string
	ABR         *ABRMatch
	Details     *ABRDetails
	Search      *SearchResults
}

func (e Evidence) hasABN() bool {
	return e.ABR != nil && e.ABR.ABN != ""
}

// Verdict is the outcome of category scoring.
type Verdict struct {
	BusinessType string
	Category     string
	Confidence   model.Confidence
	Reason       string
}

// Classify scores every rule against the evidence. Each keyword hit counts
// once against the combined text and once more against the merchant text
// alone.
func (c *Categories) Classify(e Evidence) Verdict {
	merchantText := textnorm.Join(e.MerchantRaw, e.LookupName)

	parts := []string{e.MerchantRaw, e.LookupName}
	if e.ABR != nil {
		parts = append(parts, e.ABR.Name)
	}
	if e.Details != nil {
		parts = append(parts, e.Details.EntityName, e.Details.EntityType)
	}
	if e.Search != nil {
		for _, r := range e.Search.Results {
			parts = append(parts, r.Title+" "+r.Snippet)
		}
	}
	text := textnorm.Join(parts...)

	if text == "" {
		return Verdict{
			BusinessType: "Unknown",
			Category:     model.CategoryUnknown,
			Confidence:   model.ConfidenceLow,
			Reason:       "No merchant text available for classification.",
		}
	}

	var best *CategoryRule
	bestScore := 0
	for i := range c.Rules {
		rule := &c.Rules[i]
		score := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				score += c.keywordWeight(kw)
			}
			if strings.Contains(merchantText, kw) {
				score += c.keywordWeight(kw)
			}
		}
		if score <= 0 {
			continue
		}
		if e.hasABN() {
			score += c.Scoring.ABNBonus
		}
		if best == nil || score > bestScore {
			best, bestScore = rule, score
		}
	}

	if best == nil {
		v := Verdict{
			BusinessType: "Unknown",
			Category:     model.CategoryUnknown,
			Confidence:   model.ConfidenceLow,
			Reason:       "No reliable keyword match from ABR/web sources.",
		}
		if e.Details != nil && e.Details.EntityType != "" {
			v.BusinessType = e.Details.EntityType
		}
		if e.hasABN() {
			v.Confidence = model.ConfidenceMedium
			v.Reason = "ABN found but business activity type was not confidently inferred from search text."
		}
		return v
	}

	reason := fmt.Sprintf("Matched merchant/profile keywords for %s.", best.BusinessType)
	if e.hasABN() {
		reason += " ABN match found in ABR results."
	}
	return Verdict{
		BusinessType: best.BusinessType,
		Category:     best.Category,
		Confidence:   c.confidence(bestScore),
		Reason:       reason,
	}
}

func (c *Categories) keywordWeight(kw string) int {
	if strings.Contains(kw, " ") {
		return c.Scoring.PhraseWeight
	}
	return c.Scoring.WordWeight
}

func (c *Categories) confidence(score int) model.Confidence {
	switch {
	case score >= c.Scoring.HighScore:
		return model.ConfidenceHigh
	case score >= c.Scoring.MediumScore:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
