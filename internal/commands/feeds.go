package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

func newFeedsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Inspect imported feeds and their transactions",
	}
	cmd.AddCommand(newFeedsListCommand(), newFeedsTxnsCommand(), newFeedsDeleteCommand())
	return cmd
}

func newFeedsListCommand() *cobra.Command {
	var bankAccountID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feeds, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			feeds, err := a.importer.ListFeeds(cmd.Context(), a.org(), bankAccountID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBANK\tNAME\tTYPE\tSTATUS\tCREATED")
			for _, f := range feeds {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", f.ID, f.BankAccountID, f.Name, f.Type, f.Status, f.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&bankAccountID, "bank-account", "", "only feeds of this bank account")
	return cmd
}

func newFeedsTxnsCommand() *cobra.Command {
	var filter store.TransactionFilter
	var status string

	cmd := &cobra.Command{
		Use:   "txns",
		Short: "List bank transactions",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			filter.Status = model.TransactionStatus(status)
			txns, err := a.importer.ListTransactions(cmd.Context(), a.org(), filter)
			if err != nil {
				return err
			}
			printTransactions(cmd, txns)
			return nil
		}),
	}
	cmd.Flags().StringVar(&filter.FeedID, "feed", "", "only transactions of this feed")
	cmd.Flags().StringVar(&filter.BankAccountID, "bank-account", "", "only transactions of this bank account")
	cmd.Flags().StringVar(&status, "status", "", "UNPROCESSED, MATCHED, CREATED or IGNORED")
	return cmd
}

func printTransactions(cmd *cobra.Command, txns []model.BankTransaction) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tDESCRIPTION\tSTATUS\tCONF\tCATEGORY\tFLAGS")
	for _, t := range txns {
		flags := ""
		if t.IsReconciled {
			flags += "R"
		}
		if t.IsLocked {
			flags += "L"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			t.ID, t.Date.Format("2006-01-02"), t.Amount.StringFixed(2), t.Description, t.Status, t.ConfidenceScore, t.CategoryAccountID, flags)
	}
	_ = w.Flush()
}

func newFeedsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <feed>",
		Short: "Delete a feed and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			n, err := a.importer.DeleteFeed(cmd.Context(), a.org(), args[0])
			if err != nil {
				return err
			}
			a.record(cmd, "feed_delete", args[0], fmt.Sprintf("%d transactions removed", n))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted feed %s (%d transactions)\n", args[0], n)
			return nil
		}),
	}
}
