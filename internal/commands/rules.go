package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

func newRulesCommand(global *globalOptions) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Rule table operations",
	}
	rulesCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the rule tables against the ATO label chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(global)
			if err != nil {
				return err
			}
			set := p.rules
			source := "built-in"
			if p.rulesPath != "" {
				source = p.rulesPath
			}
			fmt.Printf("Rules OK (%s, version %d)\n", source, set.Version)
			fmt.Printf("  %d deduction rules, %d non-deductible rules, %d category fallbacks\n",
				len(set.Deductions), len(set.NonDeductible), len(set.CategoryFallback))
			fmt.Printf("  %d income labels, %d deduction labels\n",
				len(p.labels.ByKind(model.LabelKindIncome)), len(p.labels.ByKind(model.LabelKindDeduction)))
			return nil
		},
	})
	return rulesCmd
}
