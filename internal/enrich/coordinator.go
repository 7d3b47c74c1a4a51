package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/logger"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/merchant"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// DefaultBatchSize is the number of merchants sent per request.
const DefaultBatchSize = 20

// Synthetic intel wording.
const (
	SyntheticBusinessType = "Internal transfer / banking event"
	SyntheticReason       = "Derived from canonical merchant key; no external merchant lookup required."
)

// Saver persists resolved intel beyond the session.
type Saver interface {
	Save(ctx context.Context, items []model.MerchantIntel) error
}

// Progress is called after each batch with the merchants processed so far.
type Progress func(done, total int)

// Coordinator fills a Cache for a set of merchant groups.
type Coordinator struct {
	Enricher  Enricher
	Cache     *Cache
	Store     Saver // optional
	BatchSize int   // <= 0 means DefaultBatchSize
	Retry     RetryConfig
	Progress  Progress // optional
	Now       func() time.Time
}

// Report summarizes one coordinator run.
type Report struct {
	Groups    int
	Synthetic int // seeded locally this run
	Pending   int // sent to the enricher
	Received  int // records merged into the cache
	Batches   int
}

// Run seeds synthetic keys, then enriches every group not already cached in
// batches. Records received before a failing batch stay cached, so a later
// run only asks for what is still missing. With forceRefresh, cached
// non-synthetic groups are requested again.
func (c *Coordinator) Run(ctx context.Context, groups []model.MerchantGroup, forceRefresh bool) (Report, error) {
	log := logger.FromContext(ctx)
	rep := Report{Groups: len(groups)}

	var seeded []model.MerchantIntel
	for _, g := range groups {
		if !merchant.IsSynthetic(g.LookupKey) || c.Cache.Has(g.LookupKey) {
			continue
		}
		intel := SyntheticIntel(g, c.now())
		c.Cache.Put(intel)
		seeded = append(seeded, intel)
	}
	rep.Synthetic = len(seeded)
	if err := c.save(ctx, seeded); err != nil {
		return rep, err
	}

	var pending []model.MerchantRequest
	for _, g := range groups {
		if g.LookupKey == "" || merchant.IsSynthetic(g.LookupKey) {
			continue
		}
		if !forceRefresh && c.Cache.Has(g.LookupKey) {
			continue
		}
		pending = append(pending, g.Request())
	}
	rep.Pending = len(pending)
	if len(pending) == 0 {
		log.Info().Int("groups", rep.Groups).Msg("all merchants already enriched")
		return rep, nil
	}

	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	log.Info().Int("pending", len(pending)).Int("batch_size", size).Msg("starting merchant enrichment")

	for start := 0; start < len(pending); start += size {
		end := min(start+size, len(pending))
		batch := pending[start:end]

		items, err := WithRetry(ctx, c.Retry, func(ctx context.Context) ([]model.MerchantIntel, error) {
			return c.Enricher.Enrich(ctx, batch, forceRefresh)
		})
		if err != nil {
			return rep, fmt.Errorf("enriching merchants %d-%d of %d: %w", start+1, end, len(pending), err)
		}

		merged := c.merge(items)
		rep.Received += len(merged)
		rep.Batches++
		if err := c.save(ctx, merged); err != nil {
			return rep, err
		}

		log.Debug().Int("done", end).Int("total", len(pending)).Int("received", len(merged)).Msg("enrichment batch complete")
		if c.Progress != nil {
			c.Progress(end, len(pending))
		}
	}
	return rep, nil
}

// merge caches items, deriving a key from the raw merchant when the
// service left it blank.
func (c *Coordinator) merge(items []model.MerchantIntel) []model.MerchantIntel {
	var merged []model.MerchantIntel
	for _, it := range items {
		if it.LookupKey == "" {
			it.LookupKey = merchant.DeriveLookupKey(it.MerchantRaw)
		}
		if it.LookupKey == "" {
			continue
		}
		c.Cache.Put(it)
		merged = append(merged, it)
	}
	return merged
}

func (c *Coordinator) save(ctx context.Context, items []model.MerchantIntel) error {
	if c.Store == nil || len(items) == 0 {
		return nil
	}
	if err := c.Store.Save(ctx, items); err != nil {
		return fmt.Errorf("saving merchant intel: %w", err)
	}
	return nil
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// SyntheticIntel is the locally derived record for a banking-event key.
func SyntheticIntel(g model.MerchantGroup, now time.Time) model.MerchantIntel {
	return model.MerchantIntel{
		LookupKey:                g.LookupKey,
		MerchantRaw:              g.SampleMerchant,
		MerchantLookupName:       g.LookupKey,
		BusinessType:             SyntheticBusinessType,
		BusinessCategory:         model.CategoryBankingEvent,
		ClassificationConfidence: string(model.ConfidenceHigh),
		ClassificationReason:     SyntheticReason,
		SourceURLs:               []string{},
		UpdatedAt:                now,
	}
}
