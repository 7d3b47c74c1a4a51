package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/atolabels"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/classifier"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/config"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/rules"
)

func newInitCommand() *cobra.Command {
	var occupation string
	var employers string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new taxprep project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(absDir, occupation, classifier.ParseEmployers(employers))
		},
	}

	cmd.Flags().StringVar(&occupation, "occupation", "", "taxpayer occupation")
	cmd.Flags().StringVar(&employers, "employers", "", "comma-separated known employer names")

	return cmd
}

func runInit(dir, occupation string, employers []string) error {
	for _, d := range []string{"logs", "import", outputDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(occupation, employers)
	cfg.RulesPath = rulesFile
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, rulesFile), rules.DefaultYAML(), 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	svc := atolabels.NewService(atolabels.DefaultChart())
	if err := svc.Save(dir); err != nil {
		return fmt.Errorf("writing label chart: %w", err)
	}

	gitignore := "import/\noutput/\nlogs/\n*.db\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	fmt.Printf("Initialized taxprep project at %s\n", dir)
	return nil
}
