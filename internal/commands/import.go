package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/bankfeed"
	"github.com/cleared-dev/bankrec/internal/importer"
	"github.com/cleared-dev/bankrec/internal/model"
)

func newImportCommand() *cobra.Command {
	var format string
	var bankAccountID string

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import bank statement CSVs as a feed",
		Long: "Import the named statement files. With no files, every CSV in import/ is " +
			"imported and moved to import/processed/.",
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			scanned := len(args) == 0
			paths := args
			if scanned {
				files, err := importer.Scan(a.dir)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No statement files in import/")
					return nil
				}
				for _, f := range files {
					paths = append(paths, f.Path)
				}
			}

			reg := importer.DefaultRegistry()
			for _, path := range paths {
				lines, err := reg.ParseFile(format, path)
				if err != nil {
					return err
				}
				name := filepath.Base(path)
				res, err := a.importer.Import(cmd.Context(), a.org(), bankfeed.ImportRequest{
					BankAccountID: bankAccountID,
					Name:          name,
					Type:          model.FeedTypeCSV,
					Metadata:      map[string]string{"file": name, "format": format},
					Lines:         lines,
				})
				if err != nil {
					return fmt.Errorf("importing %s: %w", name, err)
				}
				if scanned {
					if err := importer.MarkProcessed(a.dir, name); err != nil {
						return err
					}
				}
				a.record(cmd, "import", res.Feed.ID, fmt.Sprintf("%s: %d imported, %d duplicates", name, res.Imported, res.Skipped))
				fmt.Fprintf(cmd.OutOrStdout(), "%s: feed %s, %d imported, %d duplicates skipped (%d lines)\n",
					name, res.Feed.ID, res.Imported, res.Skipped, res.Total)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&format, "format", "generic", "statement format (chase, generic)")
	cmd.Flags().StringVar(&bankAccountID, "bank-account", "", "bank account id (required)")
	_ = cmd.MarkFlagRequired("bank-account")
	return cmd
}
