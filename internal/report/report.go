// Package report exports finalized reconciliation audit reports.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cleared-dev/bankrec/internal/model"
)

// ItemsHeader is the CSV header written by WriteItemsCSV.
const ItemsHeader = "reconciliation_id,statement_date,item_id,type,date,description,reference,category,amount"

// ItemRow converts one audit item to a CSV row.
func ItemRow(r model.AuditReport, item model.AuditItem) []string {
	return []string{
		r.ReconciliationID,
		r.StatementDate.Format(time.DateOnly),
		item.ID,
		item.Type,
		item.Date.Format(time.DateOnly),
		item.Description,
		item.Reference,
		item.Category,
		item.Amount.StringFixed(2),
	}
}

// WriteItemsCSV writes the report's frozen cleared items, one per row.
func WriteItemsCSV(w io.Writer, r model.AuditReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(ItemsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, item := range r.Items {
		if err := cw.Write(ItemRow(r, item)); err != nil {
			return fmt.Errorf("writing item %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the whole report as indented JSON.
func WriteJSON(w io.Writer, r model.AuditReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding audit report: %w", err)
	}
	return nil
}

// Summary renders the balance lines of a report for terminal output.
func Summary(r model.AuditReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation %s (%s, statement %s)\n", r.ReconciliationID, r.BankAccountName, r.StatementDate.Format(time.DateOnly))
	fmt.Fprintf(&b, "  Opening balance:     %12s\n", r.OpeningBalance.StringFixed(2))
	fmt.Fprintf(&b, "  Cleared deposits:    %12s  (%d)\n", r.ClearedDepositTotal.StringFixed(2), r.ClearedDepositCount)
	fmt.Fprintf(&b, "  Cleared withdrawals: %12s  (%d)\n", r.ClearedWithdrawalTotal.StringFixed(2), r.ClearedWithdrawalCount)
	fmt.Fprintf(&b, "  Calculated balance:  %12s\n", r.CalculatedBalance.StringFixed(2))
	fmt.Fprintf(&b, "  Statement balance:   %12s\n", r.StatementBalance.StringFixed(2))
	fmt.Fprintf(&b, "  Difference:          %12s\n", r.Difference.StringFixed(2))
	fmt.Fprintf(&b, "Finalized by %s at %s\n", r.GeneratedBy, r.GeneratedAt.Format(time.RFC3339))
	return b.String()
}

// Save writes <dir>/<reconciliation id>.json and <id>-items.csv and returns
// both paths.
func Save(dir string, r model.AuditReport) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report dir: %w", err)
	}
	jsonPath := filepath.Join(dir, r.ReconciliationID+".json")
	csvPath := filepath.Join(dir, r.ReconciliationID+"-items.csv")

	writers := []struct {
		path  string
		write func(io.Writer, model.AuditReport) error
	}{
		{jsonPath, WriteJSON},
		{csvPath, WriteItemsCSV},
	}
	for _, w := range writers {
		f, err := os.Create(w.path)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Base(w.path), err)
		}
		err = w.write(f, r)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
	}
	return []string{jsonPath, csvPath}, nil
}
