package actions

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/store/storetest"
)

func day(d int) time.Time { return storetest.Date(2026, time.March, d) }

func setup(t *testing.T) (*Applier, *store.DB) {
	t.Helper()
	db := storetest.Open(t)
	storetest.Seed(t, db)
	storetest.Feed(t, db, "feed-1")
	ctx := context.Background()
	q := db.Queries()
	require.NoError(t, q.InsertInvoice(ctx, model.Invoice{
		ID: "inv-1", OrgID: storetest.OrgID, Number: "INV-1", CustomerName: "Acme",
		Date: day(1), DueDate: day(15), Total: storetest.Dec("500"), AmountDue: storetest.Dec("500"), Status: model.DocSent,
	}))
	require.NoError(t, q.InsertInvoice(ctx, model.Invoice{
		ID: "inv-other", OrgID: storetest.OtherOrgID, Number: "INV-9", CustomerName: "Elsewhere",
		Date: day(1), DueDate: day(15), Total: storetest.Dec("500"), AmountDue: storetest.Dec("500"), Status: model.DocSent,
	}))
	require.NoError(t, q.InsertBill(ctx, model.Bill{
		ID: "bill-1", OrgID: storetest.OrgID, Number: "B-1", VendorName: "Office Depot",
		Date: day(1), DueDate: day(10), Total: storetest.Dec("80"), AmountDue: storetest.Dec("80"), Status: model.DocSent,
	}))
	require.NoError(t, q.InsertBankAccount(ctx, model.BankAccount{
		ID: "bank-2", OrgID: storetest.OrgID, Name: "Savings", LastFour: "9999", GLAccountID: storetest.Clearing,
	}))
	return NewApplier(db, zerolog.Nop()), db
}

func TestApply_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		action     Action
		wantStatus model.TransactionStatus
		check      func(t *testing.T, got model.BankTransaction)
	}{
		{
			name:       "invoice",
			amount:     "500.00",
			action:     Action{Type: MatchInvoice, InvoiceID: "inv-1"},
			wantStatus: model.TxnMatched,
			check: func(t *testing.T, got model.BankTransaction) {
				assert.Equal(t, "inv-1", got.MatchedInvoiceID)
			},
		},
		{
			name:       "partial invoice payment",
			amount:     "200.00",
			action:     Action{Type: MatchInvoice, InvoiceID: "inv-1"},
			wantStatus: model.TxnMatched,
		},
		{
			name:       "bill",
			amount:     "-80.00",
			action:     Action{Type: MatchBill, BillID: "bill-1"},
			wantStatus: model.TxnMatched,
			check: func(t *testing.T, got model.BankTransaction) {
				assert.Equal(t, "bill-1", got.MatchedBillID)
			},
		},
		{
			name:       "transfer",
			amount:     "-1000.00",
			action:     Action{Type: MatchTransfer, TransferAccountID: "bank-2"},
			wantStatus: model.TxnMatched,
			check: func(t *testing.T, got model.BankTransaction) {
				assert.Equal(t, "bank-2", got.MatchedTransferID)
			},
		},
		{
			name:       "expense",
			amount:     "-12.50",
			action:     Action{Type: CreateExpense, CategoryAccountID: storetest.Expense, Payee: "GitHub"},
			wantStatus: model.TxnCreated,
			check: func(t *testing.T, got model.BankTransaction) {
				assert.Equal(t, storetest.Expense, got.CategoryAccountID)
				assert.Equal(t, "GitHub", got.Payee)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, db := setup(t)
			txn := storetest.Txn(t, db, "feed-1", "txn", day(10), tt.amount, "line")
			act := tt.action
			act.TransactionID = txn.ID

			got, err := a.Apply(context.Background(), storetest.OrgID, act)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, ExplicitConfidence, got.ConfidenceScore)
			if tt.check != nil {
				tt.check(t, got)
			}

			stored, err := db.Queries().GetTransaction(context.Background(), txn.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}
}

func TestApply_MatchPayment(t *testing.T) {
	a, db := setup(t)
	txn := storetest.Txn(t, db, "feed-1", "txn", day(10), "-40.00", "CHECK 1001")
	storetest.Payment(t, db, "pay-1", day(9), "40.00", model.PaymentMade, "Landlord", "1001")

	got, err := a.Apply(context.Background(), storetest.OrgID, Action{TransactionID: txn.ID, Type: MatchPayment, PaymentID: "pay-1"})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", got.MatchedPaymentID)
	assert.Equal(t, model.TxnMatched, got.Status)
}

func TestApply_MatchPaymentGuards(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		payment  string
		dir      model.PaymentDirection
		prepare  func(t *testing.T, a *Applier, db *store.DB)
		wantKind apperr.Kind
	}{
		{
			name: "locked payment", amount: "-80.00", payment: "80.00", dir: model.PaymentMade,
			prepare: func(t *testing.T, _ *Applier, db *store.DB) {
				_, err := db.Queries().LockPayments(context.Background(), []string{"pay-1"}, time.Now())
				require.NoError(t, err)
			},
			wantKind: apperr.KindStateConflict,
		},
		{
			name: "reconciled payment", amount: "-80.00", payment: "80.00", dir: model.PaymentMade,
			prepare: func(t *testing.T, _ *Applier, db *store.DB) {
				require.NoError(t, db.Queries().SetPaymentReconciliation(context.Background(), "pay-1", "rec-1"))
			},
			wantKind: apperr.KindStateConflict,
		},
		{name: "deposit against payment made", amount: "100.00", payment: "100.00", dir: model.PaymentMade, wantKind: apperr.KindValidation},
		{name: "withdrawal against payment received", amount: "-100.00", payment: "100.00", dir: model.PaymentReceived, wantKind: apperr.KindValidation},
		{name: "amount off by more than a cent", amount: "-80.00", payment: "80.02", dir: model.PaymentMade, wantKind: apperr.KindValidation},
		{
			name: "payment held by another transaction", amount: "-80.00", payment: "80.00", dir: model.PaymentMade,
			prepare: func(t *testing.T, a *Applier, db *store.DB) {
				other := storetest.Txn(t, db, "feed-1", "other", day(11), "-80.00", "CHECK 1001")
				_, err := a.Apply(context.Background(), storetest.OrgID, Action{TransactionID: other.ID, Type: MatchPayment, PaymentID: "pay-1"})
				require.NoError(t, err)
			},
			wantKind: apperr.KindStateConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, db := setup(t)
			storetest.Payment(t, db, "pay-1", day(9), tt.payment, tt.dir, "Landlord", "1001")
			if tt.prepare != nil {
				tt.prepare(t, a, db)
			}
			txn := storetest.Txn(t, db, "feed-1", "txn", day(10), tt.amount, "CHECK 1001")

			_, err := a.Apply(context.Background(), storetest.OrgID, Action{TransactionID: txn.ID, Type: MatchPayment, PaymentID: "pay-1"})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))

			stored, err := db.Queries().GetTransaction(context.Background(), txn.ID)
			require.NoError(t, err)
			assert.Equal(t, model.TxnUnprocessed, stored.Status)
			assert.Empty(t, stored.MatchedPaymentID)
		})
	}
}

func TestApply_MatchPaymentWithinCent(t *testing.T) {
	a, db := setup(t)
	txn := storetest.Txn(t, db, "feed-1", "txn", day(10), "125.00", "DEPOSIT")
	storetest.Payment(t, db, "pay-1", day(9), "125.01", model.PaymentReceived, "Acme", "")

	got, err := a.Apply(context.Background(), storetest.OrgID, Action{TransactionID: txn.ID, Type: MatchPayment, PaymentID: "pay-1"})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", got.MatchedPaymentID)
}

func TestApply_IgnoreKeepsConfidence(t *testing.T) {
	a, db := setup(t)
	txn := storetest.Txn(t, db, "feed-1", "txn", day(10), "-1.00", "noise")
	require.NoError(t, db.Queries().SetSuggestedConfidence(context.Background(), txn.ID, 42, time.Now()))

	got, err := a.Apply(context.Background(), storetest.OrgID, Action{TransactionID: txn.ID, Type: Ignore})
	require.NoError(t, err)
	assert.Equal(t, model.TxnIgnored, got.Status)
	assert.Equal(t, 42, got.ConfidenceScore)
}

func TestApply_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		action   Action
		wantKind apperr.Kind
	}{
		{"missing invoice id", "10.00", Action{Type: MatchInvoice}, apperr.KindValidation},
		{"invoice on withdrawal", "-10.00", Action{Type: MatchInvoice, InvoiceID: "inv-1"}, apperr.KindValidation},
		{"invoice overpaid", "500.02", Action{Type: MatchInvoice, InvoiceID: "inv-1"}, apperr.KindValidation},
		{"unknown invoice", "10.00", Action{Type: MatchInvoice, InvoiceID: "nope"}, apperr.KindNotFound},
		{"foreign invoice", "10.00", Action{Type: MatchInvoice, InvoiceID: "inv-other"}, apperr.KindAuthorization},
		{"bill on deposit", "80.00", Action{Type: MatchBill, BillID: "bill-1"}, apperr.KindValidation},
		{"bill overpaid", "-81.00", Action{Type: MatchBill, BillID: "bill-1"}, apperr.KindValidation},
		{"unknown payment", "10.00", Action{Type: MatchPayment, PaymentID: "nope"}, apperr.KindNotFound},
		{"transfer to self", "10.00", Action{Type: MatchTransfer, TransferAccountID: storetest.BankAccountID}, apperr.KindValidation},
		{"unknown transfer account", "10.00", Action{Type: MatchTransfer, TransferAccountID: "bank-9"}, apperr.KindNotFound},
		{"missing category", "-10.00", Action{Type: CreateExpense}, apperr.KindValidation},
		{"unknown category", "-10.00", Action{Type: CreateExpense, CategoryAccountID: "9999"}, apperr.KindNotFound},
		{"unknown type", "-10.00", Action{Type: "SPLIT"}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, db := setup(t)
			txn := storetest.Txn(t, db, "feed-1", "txn", day(10), tt.amount, "line")
			act := tt.action
			act.TransactionID = txn.ID

			_, err := a.Apply(context.Background(), storetest.OrgID, act)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))

			stored, err := db.Queries().GetTransaction(context.Background(), txn.ID)
			require.NoError(t, err)
			assert.Equal(t, model.TxnUnprocessed, stored.Status)
		})
	}
}

func TestApply_StateGuards(t *testing.T) {
	ctx := context.Background()
	a, db := setup(t)
	txn := storetest.Txn(t, db, "feed-1", "txn", day(10), "-10.00", "line")

	_, err := a.Apply(ctx, storetest.OtherOrgID, Action{TransactionID: txn.ID, Type: Ignore})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = a.Apply(ctx, storetest.OrgID, Action{TransactionID: "missing", Type: Ignore})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = a.Apply(ctx, storetest.OrgID, Action{TransactionID: txn.ID, Type: Ignore})
	require.NoError(t, err)
	_, err = a.Apply(ctx, storetest.OrgID, Action{TransactionID: txn.ID, Type: CreateExpense, CategoryAccountID: storetest.Expense})
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err), "decided transactions need an undo first")

	locked := storetest.Txn(t, db, "feed-1", "locked", day(10), "-10.00", "line")
	_, err = db.Queries().LockTransactions(ctx, []string{locked.ID}, time.Now())
	require.NoError(t, err)
	_, err = a.Apply(ctx, storetest.OrgID, Action{TransactionID: locked.ID, Type: Ignore})
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))
}

func TestUndo_RestoresUnprocessed(t *testing.T) {
	actions := []Action{
		{Type: MatchInvoice, InvoiceID: "inv-1"},
		{Type: MatchTransfer, TransferAccountID: "bank-2"},
		{Type: CreateExpense, CategoryAccountID: storetest.Income},
		{Type: Ignore},
	}
	for _, act := range actions {
		t.Run(string(act.Type), func(t *testing.T) {
			ctx := context.Background()
			a, db := setup(t)
			txn := storetest.Txn(t, db, "feed-1", "txn", day(10), "100.00", "line")
			act.TransactionID = txn.ID
			_, err := a.Apply(ctx, storetest.OrgID, act)
			require.NoError(t, err)

			got, err := a.Undo(ctx, storetest.OrgID, txn.ID)
			require.NoError(t, err)
			stored, err := db.Queries().GetTransaction(ctx, txn.ID)
			require.NoError(t, err)
			for _, tx := range []model.BankTransaction{got, stored} {
				assert.Equal(t, model.TxnUnprocessed, tx.Status)
				assert.Zero(t, tx.ConfidenceScore)
				assert.Empty(t, tx.MatchedInvoiceID)
				assert.Empty(t, tx.MatchedBillID)
				assert.Empty(t, tx.MatchedPaymentID)
				assert.Empty(t, tx.MatchedTransferID)
				assert.Empty(t, tx.CategoryAccountID)
				assert.Empty(t, tx.AppliedRuleID)
			}
		})
	}
}

func TestUndo_RefusesReconciled(t *testing.T) {
	ctx := context.Background()
	a, db := setup(t)
	txn := storetest.Txn(t, db, "feed-1", "txn", day(10), "-10.00", "line")
	require.NoError(t, db.Queries().SetTransactionReconciliation(ctx, txn.ID, "rec-1", time.Now()))

	_, err := a.Undo(ctx, storetest.OrgID, txn.ID)
	assert.Equal(t, apperr.KindStateConflict, apperr.KindOf(err))
}

func TestBatchApprove(t *testing.T) {
	ctx := context.Background()
	a, db := setup(t)
	storetest.Txn(t, db, "feed-1", "t1", day(3), "-9.99", "one")
	storetest.Txn(t, db, "feed-1", "t2", day(4), "-19.99", "two")

	suggested := storetest.Txn(t, db, "feed-1", "t3", day(5), "-4.00", "three")
	suggested.Status = model.TxnCreated
	suggested.CategoryAccountID = storetest.BankFees
	suggested.ConfidenceScore = 90
	require.NoError(t, db.Queries().UpdateTransactionDecision(ctx, suggested, time.Now()))

	res := a.BatchApprove(ctx, storetest.OrgID, []string{"t1", "t2", "t3", "missing"}, "")
	assert.Equal(t, BatchResult{Approved: 1, Errors: 3}, res, "t1 and t2 carry no category")

	t3, err := db.Queries().GetTransaction(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, model.TxnCreated, t3.Status)
	assert.Equal(t, storetest.BankFees, t3.CategoryAccountID)
	assert.Equal(t, ExplicitConfidence, t3.ConfidenceScore)

	res = a.BatchApprove(ctx, storetest.OrgID, []string{"t1", "t2"}, storetest.Expense)
	assert.Equal(t, BatchResult{Approved: 2}, res)
	t1, err := db.Queries().GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TxnCreated, t1.Status)
	assert.Equal(t, storetest.Expense, t1.CategoryAccountID)
}
