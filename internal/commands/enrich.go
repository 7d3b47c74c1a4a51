package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/analysis"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/config"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/enrich"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/fy"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/lookup"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/runlog"
)

type enrichOptions struct {
	fy       string
	all      bool
	force    bool
	endpoint string
}

func newEnrichCommand(global *globalOptions) *cobra.Command {
	var opts enrichOptions

	cmd := &cobra.Command{
		Use:   "enrich <export.csv>",
		Short: "Look up business identities for the merchants in an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(global)
			if err != nil {
				return err
			}
			if opts.endpoint != "" {
				p.cfg.Enrichment.Endpoint = opts.endpoint
			}
			return runEnrich(cmd, p, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.fy, "fy", "", "financial year (default: latest ended year in the data)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "enrich merchants across every year")
	cmd.Flags().BoolVar(&opts.force, "force", false, "look up merchants again even when cached")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "enrichment service URL (default: in-process lookup)")

	return cmd
}

func runEnrich(cmd *cobra.Command, p *project, csvPath string, opts enrichOptions) error {
	ctx := p.context(cmd.Context())

	data, err := analysis.Load(csvPath, p.rules)
	if err != nil {
		return err
	}
	year := 0
	label := "all"
	if !opts.all {
		if year, err = resolveYear(data, opts.fy); err != nil {
			return err
		}
		label = fy.Format(year)
	}
	groups := data.Groups(year)

	st, err := p.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.All(ctx)
	if err != nil {
		return err
	}
	cache := enrich.NewCache()
	cache.Load(items)

	enricher, source := newEnricher(p.cfg.Enrichment)
	p.log.Info().Str("source", source).Int("merchants", len(groups)).Int("cached", cache.Len()).Msg("enriching merchants")

	coord := &enrich.Coordinator{
		Enricher:  enricher,
		Cache:     cache,
		Store:     st,
		BatchSize: p.cfg.Enrichment.BatchSize,
		Retry:     enrich.DefaultRetryConfig,
		Progress: func(done, total int) {
			fmt.Printf("  %d/%d merchants\n", done, total)
		},
	}
	rep, runErr := coord.Run(ctx, groups, opts.force)

	entry := runlog.Entry{
		Timestamp: time.Now().UTC(),
		RunID:     runlog.NewRunID(),
		Action:    runlog.ActionEnrich,
		FY:        label,
		Details: fmt.Sprintf("source=%s merchants=%d synthetic=%d requested=%d received=%d",
			source, rep.Groups, rep.Synthetic, rep.Pending, rep.Received),
	}
	if runErr != nil {
		entry.Details += " error=" + runErr.Error()
	}
	if err := runlog.Append(p.runLogPath(), []runlog.Entry{entry}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write run log: %v\n", err)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("Enriched %d of %d merchants (%d banking events, %d cached)\n", rep.Received, rep.Groups, rep.Synthetic, cache.Len())
	return nil
}

// newEnricher returns a remote client when an endpoint is configured,
// otherwise an in-process lookup service. The coordinator persists results
// either way.
func newEnricher(cfg config.EnrichmentConfig) (enrich.Enricher, string) {
	if cfg.Endpoint != "" {
		return enrich.NewHTTPClient(cfg.Endpoint, enrich.DefaultClientTimeout), cfg.Endpoint
	}
	return newLookupService(cfg, nil), "local"
}

func newLookupService(cfg config.EnrichmentConfig, saver enrich.Saver) *lookup.Service {
	return lookup.NewService(lookup.Options{
		Fetcher:     lookup.NewFetcher(&http.Client{}, cfg.RequestsPerSecond, cfg.Timeout),
		Concurrency: cfg.Concurrency,
		MaxBatch:    cfg.MaxBatch,
		Store:       saver,
	})
}
