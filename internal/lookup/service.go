// Package lookup resolves merchant lookup keys to business identities using
// the Australian Business Register and a web search, then scores the
// evidence against a category table.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/enrich"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/logger"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/merchant"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// Limits applied to one enrichment batch.
const (
	DefaultConcurrency = 3
	DefaultMaxBatch    = 250
	maxSourceURLs      = 6
)

// FailedBusinessType marks records whose lookup errored.
const FailedBusinessType = "Unknown - enrichment failed"

var (
	// ErrNoMerchants is returned for an empty batch.
	ErrNoMerchants = errors.New("no merchants supplied")
	// ErrBatchTooLarge is returned when a batch exceeds the service limit.
	ErrBatchTooLarge = errors.New("batch too large")
)

// Source lists persisted intel used to warm the cache.
type Source interface {
	All(ctx context.Context) ([]model.MerchantIntel, error)
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Categories    *Categories
	Fetcher       *Fetcher
	ABRBaseURL    string
	SearchBaseURL string
	Concurrency   int
	MaxBatch      int
	Store         enrich.Saver // optional
	Now           func() time.Time
}

// Service enriches merchants and remembers the results.
type Service struct {
	categories  *Categories
	registry    *Registry
	search      *WebSearch
	cache       *enrich.Cache
	store       enrich.Saver
	concurrency int
	maxBatch    int
	now         func() time.Time
}

// NewService builds a Service from opts.
func NewService(opts Options) *Service {
	if opts.Categories == nil {
		opts.Categories = DefaultCategories()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewFetcher(nil, 0, DefaultFetchTimeout)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		categories:  opts.Categories,
		registry:    NewRegistry(opts.Fetcher, opts.ABRBaseURL),
		search:      NewWebSearch(opts.Fetcher, opts.SearchBaseURL),
		cache:       enrich.NewCache(),
		store:       opts.Store,
		concurrency: opts.Concurrency,
		maxBatch:    opts.MaxBatch,
		now:         opts.Now,
	}
}

// Warm loads previously persisted intel into the cache.
func (s *Service) Warm(ctx context.Context, src Source) error {
	items, err := src.All(ctx)
	if err != nil {
		return fmt.Errorf("warming merchant cache: %w", err)
	}
	s.cache.Load(items)
	return nil
}

// CacheEntries returns the number of cached records.
func (s *Service) CacheEntries() int {
	return s.cache.Len()
}

// MaxBatch returns the largest batch Enrich accepts.
func (s *Service) MaxBatch() int {
	return s.maxBatch
}

// Enrich resolves a batch of merchants. Requests sharing a lookup key are
// collapsed to the first. A failed lookup yields an unknown/low record
// instead of an error, so the result has one record per distinct key.
func (s *Service) Enrich(ctx context.Context, merchants []model.MerchantRequest, forceRefresh bool) ([]model.MerchantIntel, error) {
	if len(merchants) == 0 {
		return nil, ErrNoMerchants
	}
	if len(merchants) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d merchants, limit %d", ErrBatchTooLarge, len(merchants), s.maxBatch)
	}

	log := logger.FromContext(ctx)
	unique := Dedupe(merchants)
	out := make([]model.MerchantIntel, len(unique))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, m := range unique {
		i, m := i, m
		g.Go(func() error {
			intel, err := s.EnrichOne(ctx, m, forceRefresh)
			if err != nil {
				log.Warn().Err(err).Str("lookup_key", m.LookupKey).Msg("merchant lookup failed")
				intel = s.failed(m, err)
			}
			out[i] = intel
			return nil
		})
	}
	_ = g.Wait()

	log.Info().Int("requested", len(merchants)).Int("unique", len(unique)).Msg("enriched merchant batch")
	return out, nil
}

// EnrichOne resolves a single merchant, serving from the cache unless
// forceRefresh is set.
func (s *Service) EnrichOne(ctx context.Context, m model.MerchantRequest, forceRefresh bool) (model.MerchantIntel, error) {
	key := m.LookupKey
	if key == "" {
		key = merchant.DeriveLookupKey(m.Merchant)
	}
	if key == "" {
		return model.MerchantIntel{}, errors.New("no merchant lookup key available")
	}
	if !forceRefresh {
		if intel, ok := s.cache.Lookup(key); ok {
			return intel, nil
		}
	}

	raw := m.Merchant
	if raw == "" {
		raw = key
	}
	lookupName := merchant.DeriveLookupName(raw)
	var sources []string

	abr := s.registry.BestMatch(ctx, lookupName)
	if abr != nil {
		sources = append(sources, abr.SearchURL)
	}

	var details *ABRDetails
	if abr != nil && abr.ABN != "" {
		if d, err := s.registry.Details(ctx, abr.ABN); err == nil {
			details = d
			sources = append(sources, d.DetailsURL)
		}
	}

	searchName := lookupName
	if abr != nil && abr.Name != "" {
		searchName = abr.Name
	}
	results, err := s.search.Business(ctx, searchName)
	if err == nil {
		sources = append(sources, results.QueryURL)
		for _, r := range results.Results {
			sources = append(sources, r.URL)
		}
	}

	if err := ctx.Err(); err != nil {
		return model.MerchantIntel{}, fmt.Errorf("looking up %s: %w", key, err)
	}

	verdict := s.categories.Classify(Evidence{
		MerchantRaw: raw,
		LookupName:  lookupName,
		ABR:         abr,
		Details:     details,
		Search:      results,
	})

	intel := model.MerchantIntel{
		LookupKey:                key,
		MerchantRaw:              raw,
		MerchantLookupName:       lookupName,
		BusinessType:             verdict.BusinessType,
		BusinessCategory:         verdict.Category,
		ClassificationConfidence: string(verdict.Confidence),
		ClassificationReason:     verdict.Reason,
		SourceURLs:               capSources(sources),
		UpdatedAt:                s.now().UTC(),
	}
	if abr != nil {
		intel.ABN = abr.ABN
		intel.ABNName = abr.Name
		intel.ABNStatus = abr.Status
		intel.MainPlaceOfBusiness = abr.Location
	}
	if details != nil {
		intel.ABNEntityType = details.EntityType
		intel.ABNName = firstNonEmpty(details.EntityName, intel.ABNName)
		intel.ABNStatus = firstNonEmpty(details.ABNStatus, intel.ABNStatus)
		intel.MainPlaceOfBusiness = firstNonEmpty(details.MainBusinessLocation, intel.MainPlaceOfBusiness)
	}

	s.cache.Put(intel)
	if s.store != nil {
		if err := s.store.Save(ctx, []model.MerchantIntel{intel}); err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Str("lookup_key", key).Msg("persisting merchant intel")
		}
	}
	return intel, nil
}

func (s *Service) failed(m model.MerchantRequest, err error) model.MerchantIntel {
	key := m.LookupKey
	if key == "" {
		key = merchant.DeriveLookupKey(m.Merchant)
	}
	reason := "Lookup failed."
	if err != nil {
		reason = err.Error()
	}
	return model.MerchantIntel{
		LookupKey:                key,
		MerchantRaw:              m.Merchant,
		MerchantLookupName:       merchant.DeriveLookupName(m.Merchant),
		BusinessType:             FailedBusinessType,
		BusinessCategory:         model.CategoryUnknown,
		ClassificationConfidence: string(model.ConfidenceLow),
		ClassificationReason:     reason,
		SourceURLs:               []string{},
		UpdatedAt:                s.now().UTC(),
	}
}

// Dedupe keeps the first request per lookup key, deriving missing keys from
// the merchant text. Requests with no usable key are dropped.
func Dedupe(merchants []model.MerchantRequest) []model.MerchantRequest {
	var out []model.MerchantRequest
	seen := make(map[string]bool)
	for _, m := range merchants {
		raw := strings.TrimSpace(m.Merchant)
		key := strings.TrimSpace(m.LookupKey)
		if key == "" {
			key = merchant.DeriveLookupKey(raw)
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if raw == "" {
			raw = key
		}
		out = append(out, model.MerchantRequest{LookupKey: key, Merchant: raw})
	}
	return out
}

func capSources(urls []string) []string {
	out := uniqueNonEmpty(urls)
	if len(out) > maxSourceURLs {
		out = out[:maxSourceURLs]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
