package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Account is a chart-of-accounts entry. ID is the account code, unique per organization.
type Account struct {
	ID          string
	OrgID       string
	Name        string
	Type        AccountType
	ParentID    string // "" = top-level
	IsControl   bool   // control accounts (AR, AP) only take postings from their subledger
	Description string
}

// DisplayName returns "code name", e.g. "1010 Business Checking".
func (a Account) DisplayName() string {
	if a.Name == "" {
		return a.ID
	}
	return a.ID + " " + a.Name
}

// BankAccount maps a bank feed to a chart-of-accounts entry and carries the
// last reconciled checkpoint.
type BankAccount struct {
	ID                    string
	OrgID                 string
	Name                  string
	LastFour              string
	GLAccountID           string
	LastReconciledDate    *time.Time
	LastReconciledBalance decimal.Decimal
}
