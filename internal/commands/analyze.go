package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/analysis"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/classifier"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/fy"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/report"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/runlog"
)

type analyzeOptions struct {
	fy              string
	includePossible bool
	looseTransfers  bool
	occupation      string
	employers       string
	out             string
	noIntel         bool
}

func newAnalyzeCommand(global *globalOptions) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <export.csv>",
		Short: "Classify a PocketSmith export and write the submission pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(global)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("include-possible") {
				p.cfg.Analysis.IncludePossible = opts.includePossible
			}
			if flags.Changed("loose-transfers") {
				p.cfg.Analysis.StrictTransfers = !opts.looseTransfers
			}
			if flags.Changed("occupation") {
				p.cfg.Taxpayer.Occupation = opts.occupation
			}
			if flags.Changed("employers") {
				p.cfg.Taxpayer.Employers = classifier.ParseEmployers(opts.employers)
			}
			return runAnalyze(cmd, p, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.fy, "fy", "", "financial year, e.g. FY2025 (default: latest ended year in the data)")
	cmd.Flags().BoolVar(&opts.includePossible, "include-possible", false, "include possible deductions in the draft total")
	cmd.Flags().BoolVar(&opts.looseTransfers, "loose-transfers", false, "skip strict transfer pairing and rely on keywords")
	cmd.Flags().StringVar(&opts.occupation, "occupation", "", "taxpayer occupation")
	cmd.Flags().StringVar(&opts.employers, "employers", "", "comma-separated known employer names")
	cmd.Flags().StringVar(&opts.out, "out", "", "output directory (default: <dir>/output)")
	cmd.Flags().BoolVar(&opts.noIntel, "no-intel", false, "ignore cached merchant intel")

	return cmd
}

func runAnalyze(cmd *cobra.Command, p *project, csvPath string, opts analyzeOptions) error {
	ctx := p.context(cmd.Context())

	year := 0
	if opts.fy != "" {
		var err error
		if year, err = fy.Parse(opts.fy); err != nil {
			return err
		}
	}

	data, err := analysis.Load(csvPath, p.rules)
	if err != nil {
		return err
	}
	for _, d := range data.Dropped {
		p.log.Debug().Int("line", d.Line).Str("reason", d.Reason).Msg("row dropped")
	}

	var intel classifier.IntelLookup
	if !opts.noIntel {
		cached, err := p.loadIntel(ctx)
		if err != nil {
			return err
		}
		if len(cached) > 0 {
			intel = cached
		}
	}

	cfg := p.cfg
	res, err := analysis.Run(ctx, data, p.rules, analysis.Options{
		FY:              year,
		IncludePossible: cfg.Analysis.IncludePossible,
		StrictTransfers: cfg.Analysis.StrictTransfers,
		Occupation:      cfg.Taxpayer.Occupation,
		Employers:       cfg.Taxpayer.Employers,
		Pairing:         cfg.Pairing,
		ReviewLimit:     cfg.Analysis.ReviewLimit,
	}, intel, time.Now().UTC())
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = p.path(outputDir)
	}
	paths, err := report.WriteAll(out, res, filepath.Base(csvPath), intel)
	if err != nil {
		return err
	}

	if err := runlog.Append(p.runLogPath(), []runlog.Entry{res.LogEntry()}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write run log: %v\n", err)
	}

	s := res.Summary
	fmt.Printf("%s (%s): %d transactions, %d rows dropped\n", fy.Format(res.FY), fy.PeriodText(res.FY), s.TransactionCount, len(data.Dropped))
	fmt.Printf("  Assessable income:   %s\n", report.FormatAUD(s.AssessableIncome))
	fmt.Printf("  Likely deductions:   %s\n", report.FormatAUD(s.LikelyDeductions))
	fmt.Printf("  Possible deductions: %s\n", report.FormatAUD(s.PossibleDeductions))
	fmt.Printf("  Included in draft:   %s\n", report.FormatAUD(s.IncludedDeductions))
	fmt.Printf("  Review items:        %d\n", s.ReviewCount)
	fmt.Printf("Wrote %s\n", paths.Markdown)
	fmt.Printf("Wrote %s\n", paths.Classified)
	fmt.Printf("Wrote %s\n", paths.Merchants)
	return nil
}
