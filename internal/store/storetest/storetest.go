// Package storetest opens throwaway databases and seeds fixtures for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Fixture ids seeded by Seed.
const (
	OrgID         = "org-1"
	OtherOrgID    = "org-2"
	BankAccountID = "bank-1"
	BankGLAccount = "1010"
	Expense       = "5020"
	Income        = "4010"
	Receivable    = "1200"
	Payable       = "2000"
	Clearing      = "1050"
	BankFees      = "5100"
	Interest      = "4100"
	WHTPayable    = "2200"
)

// Open returns a migrated database in a temp dir, closed when the test ends.
func Open(t *testing.T) *store.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Config{Path: filepath.Join(t.TempDir(), "bankrec.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

// Seed writes a small chart of accounts and one bank account for OrgID.
func Seed(t *testing.T, db *store.DB) {
	t.Helper()
	ctx := context.Background()
	q := db.Queries()

	chart := []model.Account{
		{ID: BankGLAccount, Name: "Business Checking", Type: model.AccountTypeAsset},
		{ID: Clearing, Name: "Transfer Clearing", Type: model.AccountTypeAsset},
		{ID: Receivable, Name: "Accounts Receivable", Type: model.AccountTypeAsset, IsControl: true},
		{ID: Payable, Name: "Accounts Payable", Type: model.AccountTypeLiability, IsControl: true},
		{ID: WHTPayable, Name: "Withholding Tax Payable", Type: model.AccountTypeLiability},
		{ID: Income, Name: "Sales", Type: model.AccountTypeRevenue},
		{ID: Interest, Name: "Interest Income", Type: model.AccountTypeRevenue},
		{ID: Expense, Name: "Software", Type: model.AccountTypeExpense},
		{ID: BankFees, Name: "Bank Fees", Type: model.AccountTypeExpense},
	}
	for _, a := range chart {
		a.OrgID = OrgID
		require.NoError(t, q.UpsertAccount(ctx, a))
	}
	require.NoError(t, q.InsertBankAccount(ctx, model.BankAccount{
		ID:                    BankAccountID,
		OrgID:                 OrgID,
		Name:                  "Operating",
		LastFour:              "4321",
		GLAccountID:           BankGLAccount,
		LastReconciledBalance: decimal.Zero,
	}))
}

// Date is a UTC calendar date.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Dec parses a decimal literal, panicking on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Feed inserts an empty feed for the seeded bank account and returns its id.
func Feed(t *testing.T, db *store.DB, feedID string) string {
	t.Helper()
	require.NoError(t, db.Queries().InsertFeed(context.Background(), model.BankFeed{
		ID:            feedID,
		OrgID:         OrgID,
		BankAccountID: BankAccountID,
		Name:          feedID,
		Type:          model.FeedTypeCSV,
		Status:        model.FeedStatusCompleted,
		Metadata:      map[string]string{},
		CreatedAt:     time.Now().UTC(),
	}))
	return feedID
}

// Txn inserts an UNPROCESSED transaction on the seeded bank account.
func Txn(t *testing.T, db *store.DB, feedID, txnID string, date time.Time, amount, description string) model.BankTransaction {
	t.Helper()
	now := time.Now().UTC()
	txn := model.BankTransaction{
		ID:                    txnID,
		OrgID:                 OrgID,
		FeedID:                feedID,
		BankAccountID:         BankAccountID,
		Date:                  date,
		Amount:                Dec(amount),
		Description:           description,
		NormalizedDescription: description,
		DuplicateHash:         "hash-" + txnID,
		Status:                model.TxnUnprocessed,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, db.Queries().InsertTransaction(context.Background(), txn))
	return txn
}

// Payment inserts a manual payment on the seeded bank account.
func Payment(t *testing.T, db *store.DB, paymentID string, date time.Time, amount string, dir model.PaymentDirection, party, ref string) model.Payment {
	t.Helper()
	p := model.Payment{
		ID:            paymentID,
		OrgID:         OrgID,
		BankAccountID: BankAccountID,
		Date:          date,
		Amount:        Dec(amount),
		Direction:     dir,
		PartyName:     party,
		Reference:     ref,
		Source:        model.PaymentSourceManual,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.Queries().InsertPayment(context.Background(), p))
	return p
}
