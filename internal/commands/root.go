package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "bankrec",
		Short:   "Bank feed ingestion and reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("dir", ".", "project directory")
	rootCmd.PersistentFlags().String("actor", "cli", "user recorded on created and finalized records")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountsCommand(),
		newImportCommand(),
		newFeedsCommand(),
		newRulesCommand(),
		newSuggestCommand(),
		newTxnCommand(),
		newReconcileCommand(),
		newJournalCommand(),
	)

	return rootCmd
}
