package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrec/internal/matching"
)

func newSuggestCommand() *cobra.Command {
	var feedID string

	cmd := &cobra.Command{
		Use:   "suggest [txn]",
		Short: "Suggest invoices, bills or payments that explain transactions",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case len(args) == 1:
				sugg, err := a.matching.Suggest(cmd.Context(), a.org(), args[0])
				if err != nil {
					return err
				}
				printSuggestions(out, args[0], sugg)
			case feedID != "":
				res, err := a.matching.SuggestForFeed(cmd.Context(), a.org(), feedID)
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(res.Suggestions))
				for id := range res.Suggestions {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					printSuggestions(out, id, res.Suggestions[id])
				}
				if res.Failed > 0 {
					fmt.Fprintf(out, "%d transactions failed\n", res.Failed)
				}
			default:
				return errors.New("pass a transaction id or --feed")
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&feedID, "feed", "", "suggest for every unprocessed transaction of a feed")
	return cmd
}

func printSuggestions(out io.Writer, txnID string, sugg []matching.Suggestion) {
	if len(sugg) == 0 {
		fmt.Fprintf(out, "%s: no suggestions\n", txnID)
		return
	}
	fmt.Fprintf(out, "%s:\n", txnID)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range sugg {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Score, s.Type, s.ID, s.PartyName, s.Date.Format("2006-01-02"), s.Amount.StringFixed(2), strings.Join(s.Reasons, "; "))
	}
	_ = w.Flush()
}
