package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/bankrec/internal/model"
)

// Header is the CSV header of a journal export.
const Header = "transaction_number,date,account_id,description,debit,credit,source_type,source_id,locked,reconciliation_id"

const (
	numFields  = 10
	dateFormat = "2006-01-02"
	colNumber  = 0
	colDate    = 1
	colAcctID  = 2
	colDesc    = 3
	colDebit   = 4
	colCredit  = 5
	colSrcType = 6
	colSrcID   = 7
	colLocked  = 8
	colRecon   = 9
)

// WriteEntries writes one row per journal line, header included.
func WriteEntries(w io.Writer, entries []model.JournalEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 1
	for _, e := range entries {
		for _, l := range e.Lines {
			row++
			if err := cw.Write(MarshalLine(e, l)); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalLine converts one line of an entry to a CSV row.
func MarshalLine(e model.JournalEntry, l model.JournalLine) []string {
	row := make([]string, numFields)
	row[colNumber] = e.TransactionNumber
	row[colDate] = e.Date.Format(dateFormat)
	row[colAcctID] = l.AccountID
	row[colDesc] = e.Description

	switch l.Side {
	case model.Debit:
		row[colDebit] = l.Amount.StringFixed(2)
	case model.Credit:
		row[colCredit] = l.Amount.StringFixed(2)
	}

	row[colSrcType] = string(e.SourceType)
	row[colSrcID] = e.SourceID
	if e.IsLocked {
		row[colLocked] = "true"
	}
	row[colRecon] = e.ReconciliationID
	return row
}
