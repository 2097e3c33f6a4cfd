package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentDirection says whether money came in or went out.
type PaymentDirection string

const (
	PaymentReceived PaymentDirection = "RECEIVED"
	PaymentMade     PaymentDirection = "MADE"
)

// PaymentSource distinguishes user payments from reconciliation adjustments.
type PaymentSource string

const (
	PaymentSourceManual     PaymentSource = "MANUAL"
	PaymentSourceAdjustment PaymentSource = "ADJUSTMENT"
)

// Payment is an internal record of money moving through a bank account.
// Amount is always positive; Direction carries the sign.
type Payment struct {
	ID               string
	OrgID            string
	BankAccountID    string
	Date             time.Time
	Amount           decimal.Decimal
	Direction        PaymentDirection
	PartyName        string
	Reference        string
	Source           PaymentSource
	InvoiceID        string
	BillID           string
	IsReconciled     bool
	ReconciliationID string
	IsLocked         bool
	LockedAt         *time.Time
	CreatedAt        time.Time
}

// SignedAmount returns the amount as seen by the bank: deposits positive.
func (p Payment) SignedAmount() decimal.Decimal {
	if p.Direction == PaymentMade {
		return p.Amount.Neg()
	}
	return p.Amount
}

// DocumentStatus is the lifecycle of an invoice or bill.
type DocumentStatus string

const (
	DocDraft         DocumentStatus = "DRAFT"
	DocSent          DocumentStatus = "SENT"
	DocPartiallyPaid DocumentStatus = "PARTIALLY_PAID"
	DocOverdue       DocumentStatus = "OVERDUE"
	DocPaid          DocumentStatus = "PAID"
	DocVoid          DocumentStatus = "VOID"
)

// OpenStatuses are the document statuses that still carry an open balance.
var OpenStatuses = []DocumentStatus{DocSent, DocPartiallyPaid, DocOverdue}

// Invoice is a receivable owned by the invoicing subsystem.
type Invoice struct {
	ID           string
	OrgID        string
	Number       string
	CustomerName string
	Date         time.Time
	DueDate      time.Time
	Total        decimal.Decimal
	AmountDue    decimal.Decimal
	Status       DocumentStatus
}

// Bill is a payable owned by the purchasing subsystem.
type Bill struct {
	ID         string
	OrgID      string
	Number     string
	VendorName string
	Date       time.Time
	DueDate    time.Time
	Total      decimal.Decimal
	AmountDue  decimal.Decimal
	Status     DocumentStatus
}
