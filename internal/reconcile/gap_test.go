package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(typ ItemType, id, amount string) ClearableItem {
	signed := dec(amount)
	return ClearableItem{
		ID:           id,
		Type:         typ,
		Date:         time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC),
		SignedAmount: signed,
		Category:     categoryOf(signed),
	}
}

func TestCalculateGap_Balanced(t *testing.T) {
	items := []ClearableItem{
		item(ItemBankTransaction, "d1", "500"),
		item(ItemPayment, "d2", "250"),
		item(ItemBankTransaction, "w1", "-100"),
	}
	cleared := NewClearedSet([]string{"d2"}, []string{"d1", "w1"})

	g := CalculateGap(dec("1000"), dec("1650"), items, cleared)
	assert.Equal(t, "750.00", g.ClearedDeposits.StringFixed(2))
	assert.Equal(t, "100.00", g.ClearedWithdrawals.StringFixed(2))
	assert.Equal(t, "1650.00", g.CalculatedBalance.StringFixed(2))
	assert.True(t, g.Difference.IsZero())
	assert.True(t, g.IsBalanced)
	assert.Equal(t, 2, g.ClearedDepositCount)
	assert.Equal(t, 1, g.ClearedWithdrawalCount)
	assert.Equal(t, 3, g.ClearedCount)
	assert.Zero(t, g.UnclearedCount)
}

func TestCalculateGap_UnclearedItemsDoNotMoveBalance(t *testing.T) {
	base := []ClearableItem{
		item(ItemBankTransaction, "d1", "500"),
		item(ItemBankTransaction, "d2", "250"),
		item(ItemBankTransaction, "w1", "-100"),
	}
	cleared := NewClearedSet(nil, []string{"d1", "d2", "w1"})
	want := CalculateGap(dec("1000"), dec("1650"), base, cleared)

	extras := []ClearableItem{
		item(ItemBankTransaction, "u1", "999.99"),
		item(ItemBankTransaction, "u2", "-42.10"),
		item(ItemPayment, "u3", "0.01"),
		item(ItemPayment, "u4", "-10000"),
	}
	for _, extra := range extras {
		t.Run(extra.ID, func(t *testing.T) {
			items := append(append([]ClearableItem{}, base...), extra)
			g := CalculateGap(dec("1000"), dec("1650"), items, cleared)
			assert.True(t, want.CalculatedBalance.Equal(g.CalculatedBalance))
			assert.True(t, g.IsBalanced)
			assert.Equal(t, 1, g.UnclearedCount)
			assert.True(t, extra.SignedAmount.Abs().Equal(g.UnclearedDeposits.Add(g.UnclearedWithdrawals)))
		})
	}
}

func TestCalculateGap_Tolerance(t *testing.T) {
	items := []ClearableItem{item(ItemBankTransaction, "d1", "100")}
	cleared := NewClearedSet(nil, []string{"d1"})

	tests := []struct {
		statement string
		balanced  bool
	}{
		{"100.00", true},
		{"100.009", true},
		{"99.991", true},
		{"100.01", false},
		{"99.99", false},
	}
	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			g := CalculateGap(decimal.Zero, dec(tt.statement), items, cleared)
			assert.Equal(t, tt.balanced, g.IsBalanced)
			assert.True(t, g.CalculatedBalance.Sub(dec(tt.statement)).Equal(g.Difference))
		})
	}
}

func TestCalculateGap_PairedPaymentCountsOnce(t *testing.T) {
	pay := item(ItemPayment, "pay-1", "500")
	txn := item(ItemBankTransaction, "t1", "500")
	txn.MatchedPaymentID = "pay-1"
	items := []ClearableItem{pay, txn}

	g := CalculateGap(dec("0"), dec("500"), items, NewClearedSet([]string{"pay-1"}, []string{"t1"}))
	assert.Equal(t, "500.00", g.ClearedDeposits.StringFixed(2))
	assert.Equal(t, 1, g.ClearedCount)
	assert.True(t, g.IsBalanced)

	g = CalculateGap(dec("0"), dec("0"), items, NewClearedSet(nil, nil))
	assert.Equal(t, "500.00", g.UnclearedDeposits.StringFixed(2))
	assert.Equal(t, 1, g.UnclearedCount)
}

func TestBookBalance_ExcludesAdjustments(t *testing.T) {
	fee := item(ItemPayment, "adj", "-15")
	fee.IsAdjustment = true
	items := []ClearableItem{item(ItemBankTransaction, "d1", "200"), fee}
	cleared := NewClearedSet([]string{"adj"}, []string{"d1"})

	assert.Equal(t, "1200.00", bookBalance(dec("1000"), items, cleared).StringFixed(2))
	assert.Equal(t, "1185.00", CalculateGap(dec("1000"), dec("0"), items, cleared).CalculatedBalance.StringFixed(2))
}

func TestClearedSetHelpers(t *testing.T) {
	ids := addID(addID(nil, "a"), "b")
	ids = addID(ids, "a")
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []string{"b"}, removeID(ids, "a"))
	assert.Equal(t, []string{"a", "b"}, ids)

	s := NewClearedSet([]string{"x"}, []string{"y"})
	assert.True(t, s.Contains(ItemRef{Type: ItemPayment, ID: "x"}))
	assert.False(t, s.Contains(ItemRef{Type: ItemBankTransaction, ID: "x"}))
	assert.True(t, s.Contains(ItemRef{Type: ItemBankTransaction, ID: "y"}))
}

func TestScorePair(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, time.January, d, 0, 0, 0, 0, time.UTC) }
	pay := ClearableItem{ID: "p", Type: ItemPayment, Date: day(5), SignedAmount: dec("500"), Reference: "INV-7", Party: "Acme"}

	tests := []struct {
		name  string
		txn   ClearableItem
		score int
		ok    bool
	}{
		{"everything", ClearableItem{Date: day(5), SignedAmount: dec("500.00"), Reference: "inv-7", Party: "ACME CORP"}, 100, true},
		{"same day only", ClearableItem{Date: day(5), SignedAmount: dec("500"), Description: "DEPOSIT"}, 80, true},
		{"reference three days out", ClearableItem{Date: day(8), SignedAmount: dec("500"), Reference: "INV-7"}, 90, true},
		{"payee in description", ClearableItem{Date: day(6), SignedAmount: dec("500"), Description: "ACH ACME PAYROLL"}, 80, true},
		{"four days out", ClearableItem{Date: day(9), SignedAmount: dec("500")}, 0, false},
		{"different amount", ClearableItem{Date: day(5), SignedAmount: dec("499.99")}, 0, false},
		{"opposite sign", ClearableItem{Date: day(5), SignedAmount: dec("-500")}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasons, ok := scorePair(pay, tt.txn)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.score, score)
			if ok {
				assert.NotEmpty(t, reasons)
			}
		})
	}
}

func TestPairs_SkipsClearedAndLocked(t *testing.T) {
	p1 := item(ItemPayment, "p1", "50")
	p2 := item(ItemPayment, "p2", "50")
	p2.IsCleared = true
	t1 := item(ItemBankTransaction, "t1", "50")
	t2 := item(ItemBankTransaction, "t2", "50")
	t2.IsLocked = true

	got := pairs([]ClearableItem{p1, p2, t1, t2})
	if assert.Len(t, got, 1) {
		assert.Equal(t, "p1", got[0].PaymentID)
		assert.Equal(t, "t1", got[0].TransactionID)
		assert.Equal(t, 80, got[0].Score)
	}
}
