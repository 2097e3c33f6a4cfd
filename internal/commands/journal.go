package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/journal"
)

func newJournalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the general journal",
	}
	cmd.AddCommand(newJournalExportCommand())
	return cmd
}

func newJournalExportCommand() *cobra.Command {
	var month, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one month of journal entries as CSV",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			start, err := parseDate("month", month+"-01")
			if err != nil {
				return err
			}
			entries, err := a.journal.EntriesForMonth(cmd.Context(), a.db.Queries(), a.org(), start.Year(), int(start.Month()))
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			return journal.WriteEntries(w, entries)
		}),
	}
	cmd.Flags().StringVar(&month, "month", "", "month to export, YYYY-MM (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
