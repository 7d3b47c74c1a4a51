package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/logger"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/lookup"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(global *globalOptions) *cobra.Command {
	var addr string
	var cacheDB string
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the merchant enrichment service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(global)
			if err != nil {
				return err
			}
			if addr != "" {
				p.cfg.Enrichment.Addr = addr
			}
			if cacheDB != "" {
				p.cfg.Enrichment.CacheDB = cacheDB
			}
			if len(origins) == 0 {
				origins = lookup.DefaultOrigins
			}
			return runServe(cmd, p, origins)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config or PORT)")
	cmd.Flags().StringVar(&cacheDB, "cache-db", "", "merchant intel database (same as --intel-db)")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "allowed CORS origin (repeatable)")

	return cmd
}

func runServe(cmd *cobra.Command, p *project, origins []string) error {
	log := logger.NewJSON(os.Stderr, p.cfg.LogLevel)
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(logger.WithContext(base, log), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := p.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := newLookupService(p.cfg.Enrichment, st)
	if err := svc.Warm(ctx, st); err != nil {
		return err
	}

	srv := lookup.NewServer(p.cfg.Enrichment.Addr, lookup.NewHandler(svc, log, origins))
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Int("cache_entries", svc.CacheEntries()).Msg("starting enrichment service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down enrichment service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("enrichment service stopped")
	return nil
}
