package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/rules"
)

func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
	}
	cmd.AddCommand(newRulesListCommand(), newRulesLoadCommand(), newRulesApplyCommand())
	return cmd
}

func newRulesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			rs, err := a.rules.GetRules(cmd.Context(), a.org())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tNAME\tMATCH\tCATEGORY\tACTIVE\tAPPLIED")
			for _, r := range rs {
				fmt.Fprintf(w, "%d\t%s\t%s %s %q\t%s\t%t\t%d\n",
					r.Priority, r.Name, r.Field, r.Operator, r.Value, r.CategoryAccountID, r.IsActive, r.TimesApplied)
			}
			return w.Flush()
		}),
	}
}

func newRulesLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load [file]",
		Short: "Create rules from rules/categorization-rules.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			path := filepath.Join(a.dir, rules.FilePath)
			if len(args) > 0 {
				path = args[0]
			}
			drafts, err := rules.LoadFile(path)
			if err != nil {
				return err
			}
			for _, d := range drafts {
				if _, err := a.rules.CreateRule(cmd.Context(), a.org(), d); err != nil {
					return fmt.Errorf("rule %q: %w", d.Name, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d rules\n", len(drafts))
			return nil
		}),
	}
}

func newRulesApplyCommand() *cobra.Command {
	var bankAccountID string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Categorize unprocessed transactions with the active rules",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			res, err := a.rules.ApplyRulesToUnprocessed(cmd.Context(), a.org(), bankAccountID)
			if err != nil {
				return err
			}
			a.record(cmd, "rules_apply", bankAccountID, fmt.Sprintf("%d categorized of %d", res.Categorized, res.Processed))
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d, categorized %d, errors %d\n", res.Processed, res.Categorized, res.Errors)
			return nil
		}),
	}
	cmd.Flags().StringVar(&bankAccountID, "bank-account", "", "bank account id (required)")
	_ = cmd.MarkFlagRequired("bank-account")
	return cmd
}
