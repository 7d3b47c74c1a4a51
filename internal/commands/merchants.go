package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/analysis"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/fy"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/report"
)

func newMerchantsCommand(global *globalOptions) *cobra.Command {
	var fyFlag string
	var all bool
	var limit int

	cmd := &cobra.Command{
		Use:   "merchants <export.csv>",
		Short: "List merchant groups with any cached business intel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(global)
			if err != nil {
				return err
			}
			return runMerchants(cmd, p, args[0], fyFlag, all, limit)
		},
	}

	cmd.Flags().StringVar(&fyFlag, "fy", "", "financial year (default: latest ended year in the data)")
	cmd.Flags().BoolVar(&all, "all", false, "list merchants across every year")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum merchants to list (0 = no limit)")

	return cmd
}

// resolveYear parses flag, falling back to the default year for d.
func resolveYear(d *analysis.Dataset, flag string) (int, error) {
	year := 0
	if flag != "" {
		var err error
		if year, err = fy.Parse(flag); err != nil {
			return 0, err
		}
	}
	return d.SelectFY(year, time.Now().UTC())
}

func runMerchants(cmd *cobra.Command, p *project, csvPath, fyFlag string, all bool, limit int) error {
	ctx := p.context(cmd.Context())

	data, err := analysis.Load(csvPath, p.rules)
	if err != nil {
		return err
	}

	year := 0
	scope := "all years"
	if !all {
		if year, err = resolveYear(data, fyFlag); err != nil {
			return err
		}
		scope = fy.Format(year)
	}

	intel, err := p.loadIntel(ctx)
	if err != nil {
		return err
	}

	groups := data.Groups(year)
	fmt.Printf("%d merchants (%s)\n", len(groups), scope)
	for i, g := range groups {
		if limit > 0 && i == limit {
			fmt.Printf("... %d more\n", len(groups)-limit)
			break
		}
		category := "-"
		if mi, ok := intel[g.LookupKey]; ok {
			category = report.DisplayCategory(mi.BusinessCategory)
		}
		fmt.Printf("%-32s %5d %14s  %s\n", g.LookupKey, g.TransactionCount, report.FormatAUD(g.TotalAbsAmount), category)
	}
	return nil
}
