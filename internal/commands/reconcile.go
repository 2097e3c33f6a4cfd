package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/archive"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/reconcile"
	"github.com/cleared-dev/bankrec/internal/report"
)

func newReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reconcile",
		Aliases: []string{"rec"},
		Short:   "Reconcile a bank account against a statement",
	}
	cmd.AddCommand(
		newReconcileOpenCommand(),
		newReconcileListCommand(),
		newReconcileStatusCommand(),
		newReconcileClearCommand(),
		newReconcileToggleCommand(),
		newReconcilePairsCommand(),
		newReconcileMatchCommand(),
		newReconcileUnmatchCommand(),
		newReconcileAutoMatchCommand(),
		newReconcileAdjustCommand(),
		newReconcileFinalizeCommand(),
		newReconcileExportCommand(),
	)
	return cmd
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "%q is not a YYYY-MM-DD date", s)
	}
	return t, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, apperr.Invalid(field, "%q is not a decimal amount", s)
	}
	return d, nil
}

// parseRef reads "payment:<id>" or "txn:<id>".
func parseRef(s string) (reconcile.ItemRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return reconcile.ItemRef{}, apperr.Invalid("item", "%q must be payment:<id> or txn:<id>", s)
	}
	switch strings.ToLower(kind) {
	case "payment", "pay":
		return reconcile.ItemRef{Type: reconcile.ItemPayment, ID: id}, nil
	case "txn", "transaction":
		return reconcile.ItemRef{Type: reconcile.ItemBankTransaction, ID: id}, nil
	}
	return reconcile.ItemRef{}, apperr.Invalid("item", "unknown item type %q", kind)
}

func newReconcileOpenCommand() *cobra.Command {
	var bankAccountID, statementDate, statementBalance, opening string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Start a reconciliation for a statement",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			date, err := parseDate("statement-date", statementDate)
			if err != nil {
				return err
			}
			balance, err := parseAmount("statement-balance", statementBalance)
			if err != nil {
				return err
			}
			req := reconcile.OpenRequest{
				BankAccountID:    bankAccountID,
				StatementDate:    date,
				StatementBalance: balance,
				CreatedBy:        actor(cmd),
			}
			if opening != "" {
				o, err := parseAmount("opening-balance", opening)
				if err != nil {
					return err
				}
				req.OpeningBalance = &o
			}
			rec, err := a.reconcile.Open(cmd.Context(), a.org(), req)
			if err != nil {
				return err
			}
			a.record(cmd, "reconcile_open", rec.ID, fmt.Sprintf("%s statement %s", rec.BankAccountID, statementDate))
			fmt.Fprintf(cmd.OutOrStdout(), "Opened reconciliation %s (opening %s, statement %s)\n",
				rec.ID, rec.OpeningBalance.StringFixed(2), rec.StatementBalance.StringFixed(2))
			return nil
		}),
	}
	cmd.Flags().StringVar(&bankAccountID, "bank-account", "", "bank account id (required)")
	cmd.Flags().StringVar(&statementDate, "statement-date", "", "statement end date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&statementBalance, "statement-balance", "", "ending balance on the statement (required)")
	cmd.Flags().StringVar(&opening, "opening-balance", "", "opening balance (default: last reconciled balance)")
	for _, f := range []string{"bank-account", "statement-date", "statement-balance"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newReconcileListCommand() *cobra.Command {
	var bankAccountID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reconciliations",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			recs, err := a.reconcile.List(cmd.Context(), a.org(), bankAccountID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBANK\tSTATEMENT\tBALANCE\tSTATUS\tCLEARED")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", r.ID, r.BankAccountID, r.StatementDate.Format(time.DateOnly),
					r.StatementBalance.StringFixed(2), r.Status, len(r.ClearedPaymentIDs)+len(r.ClearedTransactionIDs))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&bankAccountID, "bank-account", "", "only this bank account")
	return cmd
}

func newReconcileStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <reconciliation>",
		Short: "Show clearable items and the current difference",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ws, err := a.reconcile.Worksheet(cmd.Context(), a.org(), args[0])
			if err != nil {
				return err
			}
			printWorksheet(cmd.OutOrStdout(), ws)
			return nil
		}),
	}
}

func printWorksheet(out io.Writer, ws reconcile.Worksheet) {
	rec, g := ws.Reconciliation, ws.Gap
	fmt.Fprintf(out, "Reconciliation %s (%s, statement %s, %s)\n\n",
		rec.ID, rec.BankAccountID, rec.StatementDate.Format(time.DateOnly), rec.Status)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tREF\tDATE\tAMOUNT\tDESCRIPTION")
	for _, item := range ws.Items {
		mark := " "
		if item.IsCleared {
			mark = "x"
		}
		kind := "txn"
		if item.Type == reconcile.ItemPayment {
			kind = "payment"
		}
		fmt.Fprintf(w, "[%s]\t%s:%s\t%s\t%s\t%s\n", mark, kind, item.ID,
			item.Date.Format(time.DateOnly), item.SignedAmount.StringFixed(2), item.Description)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\nOpening balance:     %12s\n", g.OpeningBalance.StringFixed(2))
	fmt.Fprintf(out, "Cleared deposits:    %12s  (%d)\n", g.ClearedDeposits.StringFixed(2), g.ClearedDepositCount)
	fmt.Fprintf(out, "Cleared withdrawals: %12s  (%d)\n", g.ClearedWithdrawals.StringFixed(2), g.ClearedWithdrawalCount)
	fmt.Fprintf(out, "Calculated balance:  %12s\n", g.CalculatedBalance.StringFixed(2))
	fmt.Fprintf(out, "Statement balance:   %12s\n", g.StatementBalance.StringFixed(2))
	fmt.Fprintf(out, "Difference:          %12s\n", g.Difference.StringFixed(2))
	if g.IsBalanced {
		fmt.Fprintln(out, "Balanced")
	}
}

func newReconcileClearCommand() *cobra.Command {
	var unclear bool

	cmd := &cobra.Command{
		Use:   "clear <reconciliation> <payment:id|txn:id>...",
		Short: "Mark items cleared (or uncleared with --unclear)",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			refs := make([]reconcile.ItemRef, 0, len(args)-1)
			for _, s := range args[1:] {
				ref, err := parseRef(s)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}
			res, err := a.reconcile.BulkToggleClear(cmd.Context(), a.org(), args[0], refs, !unclear)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, msg := range res.Errors {
				fmt.Fprintln(out, "  "+msg)
			}
			fmt.Fprintf(out, "Updated %d, failed %d\n", res.Toggled, res.Failed)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&unclear, "unclear", false, "remove the items from the cleared set")
	return cmd
}

func newReconcileToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <reconciliation> <payment:id|txn:id>",
		Short: "Flip one item's cleared state",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ref, err := parseRef(args[1])
			if err != nil {
				return err
			}
			cleared, err := a.reconcile.ToggleClear(cmd.Context(), a.org(), args[0], ref)
			if err != nil {
				return err
			}
			state := "uncleared"
			if cleared {
				state = "cleared"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[1], state)
			return nil
		}),
	}
}

func newReconcilePairsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pairs <reconciliation>",
		Short: "Suggest payment and bank transaction pairs",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			pairs, err := a.reconcile.FindMatches(cmd.Context(), a.org(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCORE\tPAYMENT\tTXN\tREASONS")
			for _, p := range pairs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.Score, p.PaymentID, p.TransactionID, strings.Join(p.Reasons, "; "))
			}
			return w.Flush()
		}),
	}
}

func newReconcileMatchCommand() *cobra.Command {
	var paymentID, txnID string

	cmd := &cobra.Command{
		Use:   "match <reconciliation>",
		Short: "Pair a payment with a bank transaction and clear both",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.reconcile.MatchTransaction(cmd.Context(), a.org(), args[0], paymentID, txnID); err != nil {
				return err
			}
			a.record(cmd, "reconcile_match", args[0], paymentID+" = "+txnID)
			fmt.Fprintf(cmd.OutOrStdout(), "Matched payment %s with transaction %s\n", paymentID, txnID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&paymentID, "payment", "", "payment id (required)")
	cmd.Flags().StringVar(&txnID, "txn", "", "bank transaction id (required)")
	_ = cmd.MarkFlagRequired("payment")
	_ = cmd.MarkFlagRequired("txn")
	return cmd
}

func newReconcileUnmatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unmatch <reconciliation> <txn>",
		Short: "Undo a pairing and unclear both sides",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.reconcile.UnmatchTransaction(cmd.Context(), a.org(), args[0], args[1]); err != nil {
				return err
			}
			a.record(cmd, "reconcile_unmatch", args[0], args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "Unmatched transaction %s\n", args[1])
			return nil
		}),
	}
}

func newReconcileAutoMatchCommand() *cobra.Command {
	var minScore int

	cmd := &cobra.Command{
		Use:   "automatch <reconciliation>",
		Short: "Pair every suggestion at or above a score",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if !cmd.Flags().Changed("min-score") {
				minScore = a.cfg.Matching.AutoMatchScore
			}
			res, err := a.reconcile.AutoMatch(cmd.Context(), a.org(), args[0], minScore)
			if err != nil {
				return err
			}
			a.record(cmd, "reconcile_automatch", args[0], fmt.Sprintf("%d matched", res.Toggled))
			fmt.Fprintf(cmd.OutOrStdout(), "Matched %d pairs, failed %d\n", res.Toggled, res.Failed)
			return nil
		}),
	}
	cmd.Flags().IntVar(&minScore, "min-score", 90, "minimum pair score (default from config)")
	return cmd
}

func newReconcileAdjustCommand() *cobra.Command {
	var adjType, amount, accountID, date, description string

	cmd := &cobra.Command{
		Use:   "adjust <reconciliation>",
		Short: "Post a fee, interest, withholding or other adjustment",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			amt, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}
			req := reconcile.AdjustmentRequest{
				Type:        model.AdjustmentType(strings.ToUpper(adjType)),
				Amount:      amt,
				AccountID:   accountID,
				Description: description,
				CreatedBy:   actor(cmd),
			}
			if date != "" {
				if req.Date, err = parseDate("date", date); err != nil {
					return err
				}
			}
			adj, err := a.reconcile.CreateAdjustmentEntry(cmd.Context(), a.org(), args[0], req)
			if err != nil {
				return err
			}
			a.record(cmd, "reconcile_adjust", args[0], fmt.Sprintf("%s %s %s", adj.Type, adj.Amount.StringFixed(2), adj.TransactionNumber))
			fmt.Fprintf(cmd.OutOrStdout(), "Posted %s %s as %s (payment %s)\n",
				adj.Type, adj.Amount.StringFixed(2), adj.TransactionNumber, adj.PaymentID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&adjType, "type", "", "FEE, INTEREST, WHT or OTHER (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount (required; OTHER uses the sign)")
	cmd.Flags().StringVar(&accountID, "account", "", "offset account id (required)")
	cmd.Flags().StringVar(&date, "date", "", "entry date (default: statement date)")
	cmd.Flags().StringVar(&description, "description", "", "memo")
	for _, f := range []string{"type", "amount", "account"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newReconcileFinalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <reconciliation>",
		Short: "Lock a balanced reconciliation and export its audit report",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			rec, err := a.reconcile.Finalize(cmd.Context(), a.org(), args[0], actor(cmd))
			if err != nil {
				return err
			}
			a.record(cmd, "reconcile_finalize", rec.ID, "statement "+rec.StatementDate.Format(time.DateOnly))
			out := cmd.OutOrStdout()
			fmt.Fprint(out, report.Summary(*rec.AuditReport))
			return exportReport(cmd, a, rec)
		}),
	}
}

func newReconcileExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <reconciliation>",
		Short: "Write a finalized reconciliation's audit report again",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			rec, err := a.reconcile.Get(cmd.Context(), a.org(), args[0])
			if err != nil {
				return err
			}
			return exportReport(cmd, a, rec)
		}),
	}
}

// exportReport writes the audit report under the archive dir and, when
// auto-commit is on, commits it.
func exportReport(cmd *cobra.Command, a *app, rec model.BankReconciliation) error {
	if rec.AuditReport == nil {
		return apperr.Conflict("reconciliation %s is not finalized", rec.ID)
	}
	dir := a.cfg.Archive.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(a.dir, dir)
	}
	paths, err := report.Save(dir, *rec.AuditReport)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range paths {
		fmt.Fprintf(out, "Wrote %s\n", p)
	}
	if !a.cfg.Archive.AutoCommit {
		return nil
	}

	if err := archive.Init(a.dir); err != nil {
		return err
	}
	author := archive.Author{Name: a.cfg.Archive.AuthorName, Email: a.cfg.Archive.AuthorEmail}
	msg := fmt.Sprintf("reconcile: %s statement %s", rec.BankAccountID, rec.StatementDate.Format(time.DateOnly))
	hash, err := archive.Commit(a.dir, append(paths, "logs"), msg, author)
	if errors.Is(err, archive.ErrNothingToCommit) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Committed %s\n", hash)
	return nil
}
