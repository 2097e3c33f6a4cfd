package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the lifecycle of a statement-period session.
type ReconciliationStatus string

const (
	ReconInProgress ReconciliationStatus = "IN_PROGRESS"
	ReconFinalized  ReconciliationStatus = "FINALIZED"
)

// BankReconciliation is one statement-period reconciliation session.
// The two cleared-id sets are the ledger of what counts toward this session.
type BankReconciliation struct {
	ID                    string
	OrgID                 string
	BankAccountID         string
	StatementDate         time.Time
	OpeningBalance        decimal.Decimal
	StatementBalance      decimal.Decimal
	ClearedPaymentIDs     []string
	ClearedTransactionIDs []string
	Status                ReconciliationStatus
	BookBalance           decimal.Decimal
	AdjustedBalance       decimal.Decimal
	Adjustments           []Adjustment
	AuditReport           *AuditReport
	FinalizedAt           *time.Time
	FinalizedBy           string
	CreatedBy             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Finalized reports whether the session is locked.
func (r BankReconciliation) Finalized() bool {
	return r.Status == ReconFinalized
}

// AdjustmentType classifies a reconciliation adjustment.
type AdjustmentType string

const (
	AdjustmentFee      AdjustmentType = "FEE"
	AdjustmentInterest AdjustmentType = "INTEREST"
	AdjustmentWHT      AdjustmentType = "WHT"
	AdjustmentOther    AdjustmentType = "OTHER"
)

// Adjustment records a journal entry posted from inside a reconciliation.
type Adjustment struct {
	ID                string          `json:"id"`
	Type              AdjustmentType  `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	AccountID         string          `json:"accountId"`
	Date              time.Time       `json:"date"`
	Description       string          `json:"description"`
	JournalEntryID    string          `json:"journalEntryId"`
	TransactionNumber string          `json:"transactionNumber"`
	PaymentID         string          `json:"paymentId"`
	CreatedBy         string          `json:"createdBy"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// AuditItem is one cleared item frozen into an audit report.
type AuditItem struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
}

// AuditReport is the serialized snapshot taken when a reconciliation is finalized.
type AuditReport struct {
	ReconciliationID         string          `json:"reconciliationId"`
	OrgID                    string          `json:"orgId"`
	BankAccountID            string          `json:"bankAccountId"`
	BankAccountName          string          `json:"bankAccountName"`
	StatementDate            time.Time       `json:"statementDate"`
	OpeningBalance           decimal.Decimal `json:"openingBalance"`
	StatementBalance         decimal.Decimal `json:"statementBalance"`
	CalculatedBalance        decimal.Decimal `json:"calculatedBalance"`
	Difference               decimal.Decimal `json:"difference"`
	ClearedDepositCount      int             `json:"clearedDepositCount"`
	ClearedDepositTotal      decimal.Decimal `json:"clearedDepositTotal"`
	ClearedWithdrawalCount   int             `json:"clearedWithdrawalCount"`
	ClearedWithdrawalTotal   decimal.Decimal `json:"clearedWithdrawalTotal"`
	UnclearedDepositTotal    decimal.Decimal `json:"unclearedDepositTotal"`
	UnclearedWithdrawalTotal decimal.Decimal `json:"unclearedWithdrawalTotal"`
	Items                    []AuditItem     `json:"items"`
	Adjustments              []Adjustment    `json:"adjustments"`
	LockedJournalEntryIDs    []string        `json:"lockedJournalEntryIds"`
	GeneratedBy              string          `json:"generatedBy"`
	GeneratedAt              time.Time       `json:"generatedAt"`
}
