package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemType says which table a clearable item lives in.
type ItemType string

const (
	ItemPayment         ItemType = "PAYMENT"
	ItemBankTransaction ItemType = "BANK_TRANSACTION"
)

// Category is the direction of a clearable item, derived from its sign.
type Category string

const (
	Deposit    Category = "DEPOSIT"
	Withdrawal Category = "WITHDRAWAL"
)

// Tolerance is the largest difference still treated as balanced.
var Tolerance = decimal.RequireFromString("0.01")

// ItemRef names one payment or bank transaction.
type ItemRef struct {
	Type ItemType
	ID   string
}

// ClearableItem is a payment or bank transaction that may count toward a
// reconciliation.
type ClearableItem struct {
	ID           string
	Type         ItemType
	Date         time.Time
	Description  string
	Reference    string
	Party        string
	SignedAmount decimal.Decimal
	Category     Category
	IsCleared    bool
	IsLocked     bool
	IsAdjustment bool

	// MatchedPaymentID is set on bank transactions paired with a payment.
	MatchedPaymentID string
}

// Ref returns the item's reference.
func (i ClearableItem) Ref() ItemRef {
	return ItemRef{Type: i.Type, ID: i.ID}
}

func categoryOf(signed decimal.Decimal) Category {
	if signed.IsNegative() {
		return Withdrawal
	}
	return Deposit
}

// ClearedSet is a reconciliation's cleared payment and transaction ids.
type ClearedSet struct {
	payments     map[string]bool
	transactions map[string]bool
}

// NewClearedSet builds a set from the two id lists stored on a reconciliation.
func NewClearedSet(paymentIDs, transactionIDs []string) ClearedSet {
	s := ClearedSet{
		payments:     make(map[string]bool, len(paymentIDs)),
		transactions: make(map[string]bool, len(transactionIDs)),
	}
	for _, id := range paymentIDs {
		s.payments[id] = true
	}
	for _, id := range transactionIDs {
		s.transactions[id] = true
	}
	return s
}

// Contains reports whether ref is cleared.
func (s ClearedSet) Contains(ref ItemRef) bool {
	switch ref.Type {
	case ItemPayment:
		return s.payments[ref.ID]
	case ItemBankTransaction:
		return s.transactions[ref.ID]
	}
	return false
}

// Gap is the outcome of the reconciliation formula.
type Gap struct {
	OpeningBalance         decimal.Decimal
	StatementBalance       decimal.Decimal
	ClearedDeposits        decimal.Decimal
	ClearedWithdrawals     decimal.Decimal
	CalculatedBalance      decimal.Decimal
	Difference             decimal.Decimal
	IsBalanced             bool
	UnclearedDeposits      decimal.Decimal
	UnclearedWithdrawals   decimal.Decimal
	ClearedDepositCount    int
	ClearedWithdrawalCount int
	ClearedCount           int
	UnclearedCount         int
}

// represented returns the payments paired with a bank transaction in the
// same cleared state. The bank transaction stands for both.
func represented(items []ClearableItem, cleared ClearedSet) map[string]bool {
	out := make(map[string]bool)
	for _, item := range items {
		if item.Type != ItemBankTransaction || item.MatchedPaymentID == "" {
			continue
		}
		payment := ItemRef{Type: ItemPayment, ID: item.MatchedPaymentID}
		if cleared.Contains(payment) == cleared.Contains(item.Ref()) {
			out[item.MatchedPaymentID] = true
		}
	}
	return out
}

// CalculateGap applies
//
//	calculated = opening + cleared deposits - cleared withdrawals
//	difference = calculated - statement
//
// Uncleared items are totalled separately and never enter the formula. A
// payment paired with a bank transaction counts once, through the bank
// transaction.
func CalculateGap(opening, statement decimal.Decimal, items []ClearableItem, cleared ClearedSet) Gap {
	g := Gap{
		OpeningBalance:       opening,
		StatementBalance:     statement,
		ClearedDeposits:      decimal.Zero,
		ClearedWithdrawals:   decimal.Zero,
		UnclearedDeposits:    decimal.Zero,
		UnclearedWithdrawals: decimal.Zero,
	}
	paired := represented(items, cleared)
	for _, item := range items {
		if item.Type == ItemPayment && paired[item.ID] {
			continue
		}
		amount := item.SignedAmount.Abs()
		if cleared.Contains(item.Ref()) {
			if item.Category == Deposit {
				g.ClearedDepositCount++
				g.ClearedDeposits = g.ClearedDeposits.Add(amount)
			} else {
				g.ClearedWithdrawalCount++
				g.ClearedWithdrawals = g.ClearedWithdrawals.Add(amount)
			}
			continue
		}
		g.UnclearedCount++
		if item.Category == Deposit {
			g.UnclearedDeposits = g.UnclearedDeposits.Add(amount)
		} else {
			g.UnclearedWithdrawals = g.UnclearedWithdrawals.Add(amount)
		}
	}
	g.ClearedCount = g.ClearedDepositCount + g.ClearedWithdrawalCount
	g.CalculatedBalance = opening.Add(g.ClearedDeposits).Sub(g.ClearedWithdrawals)
	g.Difference = g.CalculatedBalance.Sub(statement)
	g.IsBalanced = g.Difference.Abs().LessThan(Tolerance)
	return g
}

// bookBalance is the calculated balance without adjustment items.
func bookBalance(opening decimal.Decimal, items []ClearableItem, cleared ClearedSet) decimal.Decimal {
	paired := represented(items, cleared)
	bal := opening
	for _, item := range items {
		if item.IsAdjustment || !cleared.Contains(item.Ref()) {
			continue
		}
		if item.Type == ItemPayment && paired[item.ID] {
			continue
		}
		bal = bal.Add(item.SignedAmount)
	}
	return bal
}

func addID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
