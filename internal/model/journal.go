package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the debit or credit side of a journal line.
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// SourceType names what produced a journal entry.
type SourceType string

const (
	SourcePayment        SourceType = "PAYMENT"
	SourceReconciliation SourceType = "RECONCILIATION"
)

// JournalLine is one side of a double-entry posting.
type JournalLine struct {
	ID        string
	AccountID string
	Side      Side
	Amount    decimal.Decimal
}

// JournalEntry is a balanced set of journal lines.
type JournalEntry struct {
	ID                string
	OrgID             string
	TransactionNumber string // "YYYY-MM-NNN"
	Date              time.Time
	Description       string
	SourceType        SourceType
	SourceID          string
	Lines             []JournalLine
	IsLocked          bool
	LockedAt          *time.Time
	ReconciliationID  string
	CreatedAt         time.Time
}

// Totals returns the summed debits and credits of the entry.
func (e JournalEntry) Totals() (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		switch l.Side {
		case Debit:
			debits = debits.Add(l.Amount)
		case Credit:
			credits = credits.Add(l.Amount)
		}
	}
	return debits, credits
}

// Balanced reports whether debits equal credits.
func (e JournalEntry) Balanced() bool {
	d, c := e.Totals()
	return d.Equal(c)
}
