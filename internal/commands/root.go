package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:     "taxprep",
		Short:   "Draft an Australian tax return pack from PocketSmith transactions",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dir, "dir", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: <dir>/taxprep.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.intelDB, "intel-db", "", "merchant intel database (overrides enrichment.cache_db)")
	rootCmd.PersistentFlags().StringVar(&opts.runLog, "run-log", "", "run log CSV (default: <dir>/logs/taxprep-runs.csv)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAnalyzeCommand(&opts))
	rootCmd.AddCommand(newMerchantsCommand(&opts))
	rootCmd.AddCommand(newEnrichCommand(&opts))
	rootCmd.AddCommand(newServeCommand(&opts))
	rootCmd.AddCommand(newRulesCommand(&opts))

	return rootCmd
}
