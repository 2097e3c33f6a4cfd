package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/model"
)

func newAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts and bank accounts",
	}
	cmd.AddCommand(newAccountsImportCommand(), newAccountsListCommand(), newAccountsAddBankCommand())
	return cmd
}

func newAccountsImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load accounts/chart-of-accounts.csv into the database",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			n, err := a.accounts.Import(cmd.Context(), a.org(), a.dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts\n", n)
			return nil
		}),
	}
}

func newAccountsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts and bank accounts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			accts, err := a.accounts.List(ctx, a.org())
			if err != nil {
				return err
			}
			banks, err := a.accounts.BankAccounts(ctx, a.org())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tCONTROL")
			for _, acct := range accts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", acct.ID, acct.Name, acct.Type, acct.IsControl)
			}
			if len(banks) > 0 {
				fmt.Fprintln(w, "\nBANK\tNAME\tGL ACCOUNT\tLAST RECONCILED")
				for _, b := range banks {
					last := "never"
					if b.LastReconciledDate != nil {
						last = fmt.Sprintf("%s @ %s", b.LastReconciledDate.Format("2006-01-02"), b.LastReconciledBalance.StringFixed(2))
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.GLAccountID, last)
				}
			}
			return w.Flush()
		}),
	}
}

func newAccountsAddBankCommand() *cobra.Command {
	var b config.BankAccount

	cmd := &cobra.Command{
		Use:   "add-bank <id>",
		Short: "Register a bank account and record it in bankrec.yaml",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			b.ID = args[0]
			err := a.accounts.RegisterBankAccount(cmd.Context(), a.org(), model.BankAccount{
				ID:          b.ID,
				Name:        b.Name,
				LastFour:    b.LastFour,
				GLAccountID: b.AccountID,
			})
			if err != nil {
				return err
			}
			for _, existing := range a.cfg.BankAccounts {
				if existing.ID == b.ID {
					fmt.Fprintf(cmd.OutOrStdout(), "Bank account %s already configured\n", b.ID)
					return nil
				}
			}
			a.cfg.BankAccounts = append(a.cfg.BankAccounts, b)
			if err := config.Save(filepath.Join(a.dir, config.FileName), a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added bank account %s (%s)\n", b.ID, a.accounts.DisplayName(cmd.Context(), a.org(), b.AccountID))
			return nil
		}),
	}

	cmd.Flags().StringVar(&b.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&b.LastFour, "last-four", "", "last four digits of the account number")
	cmd.Flags().StringVar(&b.AccountID, "gl-account", "", "chart-of-accounts id of the bank's GL account (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("gl-account")
	return cmd
}
