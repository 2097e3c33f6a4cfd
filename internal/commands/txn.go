package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/actions"
	"github.com/cleared-dev/bankrec/internal/model"
)

func newTxnCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Apply decisions to bank transactions",
	}
	cmd.AddCommand(newTxnApplyCommand(), newTxnUndoCommand(), newTxnApproveCommand())
	return cmd
}

func newTxnApplyCommand() *cobra.Command {
	var act actions.Action
	var actionType string

	cmd := &cobra.Command{
		Use:   "apply <txn>",
		Short: "Match, categorize or ignore a transaction",
		Long: "Apply one decision. --type is one of MATCH_INVOICE, MATCH_BILL, MATCH_PAYMENT, " +
			"MATCH_TRANSFER, CREATE_EXPENSE or IGNORE.",
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			act.TransactionID = args[0]
			act.Type = actions.Type(strings.ToUpper(actionType))
			txn, err := a.applier.Apply(cmd.Context(), a.org(), act)
			if err != nil {
				return err
			}
			a.record(cmd, "txn_apply", txn.ID, string(act.Type))
			printTransactionState(cmd, txn)
			return nil
		}),
	}
	cmd.Flags().StringVar(&actionType, "type", "", "action type (required)")
	cmd.Flags().StringVar(&act.InvoiceID, "invoice", "", "invoice id for MATCH_INVOICE")
	cmd.Flags().StringVar(&act.BillID, "bill", "", "bill id for MATCH_BILL")
	cmd.Flags().StringVar(&act.PaymentID, "payment", "", "payment id for MATCH_PAYMENT")
	cmd.Flags().StringVar(&act.TransferAccountID, "transfer-account", "", "bank account id for MATCH_TRANSFER")
	cmd.Flags().StringVar(&act.CategoryAccountID, "category", "", "account id for CREATE_EXPENSE")
	cmd.Flags().StringVar(&act.Payee, "payee", "", "payee override")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newTxnUndoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <txn>",
		Short: "Return a transaction to UNPROCESSED",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			txn, err := a.applier.Undo(cmd.Context(), a.org(), args[0])
			if err != nil {
				return err
			}
			a.record(cmd, "txn_undo", txn.ID, "")
			printTransactionState(cmd, txn)
			return nil
		}),
	}
}

func newTxnApproveCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "approve <txn>...",
		Short: "Approve transactions as categorized expenses",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			res := a.applier.BatchApprove(cmd.Context(), a.org(), args, category)
			a.record(cmd, "txn_approve", category, fmt.Sprintf("%d approved, %d errors", res.Approved, res.Errors))
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %d, errors %d\n", res.Approved, res.Errors)
			return nil
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "account id (default: each transaction's suggested category)")
	return cmd
}

func printTransactionState(cmd *cobra.Command, txn model.BankTransaction) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s -> %s (confidence %d)\n",
		txn.ID, txn.Date.Format("2006-01-02"), txn.Amount.StringFixed(2), txn.Status, txn.ConfidenceScore)
}
