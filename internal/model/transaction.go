package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementLine is one parsed bank statement row, before import.
type StatementLine struct {
	Date        time.Time
	Amount      decimal.Decimal // negative = withdrawal, positive = deposit
	Description string
	Payee       string
	Reference   string
	ExternalID  string
}

// FeedType identifies where a feed's lines came from.
type FeedType string

const (
	FeedTypeCSV FeedType = "CSV"
	FeedTypeOFX FeedType = "OFX"
	FeedTypeAPI FeedType = "API"
)

// FeedStatus is the state of an import batch.
type FeedStatus string

const (
	FeedStatusActive    FeedStatus = "ACTIVE"
	FeedStatusCompleted FeedStatus = "COMPLETED"
	FeedStatusFailed    FeedStatus = "FAILED"
)

// BankFeed is one import batch.
type BankFeed struct {
	ID            string
	OrgID         string
	BankAccountID string
	Name          string
	Type          FeedType
	Status        FeedStatus
	LastSyncAt    *time.Time
	Metadata      map[string]string
	CreatedAt     time.Time
}

// TransactionStatus is the lifecycle state of a bank transaction.
type TransactionStatus string

const (
	TxnUnprocessed TransactionStatus = "UNPROCESSED"
	TxnMatched     TransactionStatus = "MATCHED"
	TxnCreated     TransactionStatus = "CREATED"
	TxnIgnored     TransactionStatus = "IGNORED"
)

// BankTransaction is one persisted statement line.
type BankTransaction struct {
	ID                    string
	OrgID                 string
	FeedID                string
	BankAccountID         string
	Date                  time.Time
	Amount                decimal.Decimal
	Description           string
	NormalizedDescription string
	Payee                 string
	Reference             string
	ExternalID            string
	DuplicateHash         string
	Status                TransactionStatus
	ConfidenceScore       int
	MatchedInvoiceID      string
	MatchedBillID         string
	MatchedPaymentID      string
	MatchedTransferID     string
	CategoryAccountID     string
	AppliedRuleID         string
	IsReconciled          bool
	ReconciledAt          *time.Time
	ReconciliationID      string
	IsLocked              bool
	LockedAt              *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsCredit reports whether the transaction is a deposit.
func (t BankTransaction) IsCredit() bool {
	return !t.Amount.IsNegative()
}

// PayeeOrDescription returns the payee, falling back to the raw description.
func (t BankTransaction) PayeeOrDescription() string {
	if t.Payee != "" {
		return t.Payee
	}
	return t.Description
}

// Frozen reports whether normal flows may no longer change the transaction.
func (t BankTransaction) Frozen() bool {
	return t.IsLocked || t.IsReconciled
}
