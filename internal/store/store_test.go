package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/store/storetest"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := storetest.Open(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestTransaction_RoundTrip(t *testing.T) {
	db := storetest.Open(t)
	storetest.Seed(t, db)
	ctx := context.Background()
	feed := storetest.Feed(t, db, "feed-1")
	storetest.Txn(t, db, feed, "txn-1", storetest.Date(2025, 3, 4), "-12.3400", "GITHUB")

	got, err := db.Queries().GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, storetest.OrgID, got.OrgID)
	assert.True(t, got.Amount.Equal(storetest.Dec("-12.34")))
	assert.Equal(t, storetest.Date(2025, 3, 4), got.Date)
	assert.Equal(t, model.TxnUnprocessed, got.Status)
	assert.False(t, got.IsLocked)

	exists, err := db.Queries().HashExists(ctx, storetest.OrgID, "hash-txn-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = db.Queries().HashExists(ctx, storetest.OtherOrgID, "hash-txn-1")
	require.NoError(t, err)
	assert.False(t, exists, "hashes are scoped per organization")
}

func TestGetTransaction_NotFound(t *testing.T) {
	db := storetest.Open(t)
	_, err := db.Queries().GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateTransactionDecision_LockedRow(t *testing.T) {
	db := storetest.Open(t)
	storetest.Seed(t, db)
	ctx := context.Background()
	feed := storetest.Feed(t, db, "feed-1")
	txn := storetest.Txn(t, db, feed, "txn-1", storetest.Date(2025, 3, 4), "10.00", "DEPOSIT")

	n, err := db.Queries().LockTransactions(ctx, []string{txn.ID}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	txn.Status = model.TxnIgnored
	err = db.Queries().UpdateTransactionDecision(ctx, txn, time.Now())
	assert.ErrorIs(t, err, store.ErrLocked)

	got, err := db.Queries().GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TxnUnprocessed, got.Status)
	assert.True(t, got.IsLocked)
	require.NotNil(t, got.LockedAt)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := storetest.Open(t)
	storetest.Seed(t, db)
	ctx := context.Background()
	feed := storetest.Feed(t, db, "feed-1")
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(q *store.Queries) error {
		require.NoError(t, q.InsertTransaction(ctx, model.BankTransaction{
			ID: "txn-x", OrgID: storetest.OrgID, FeedID: feed, BankAccountID: storetest.BankAccountID,
			Date: storetest.Date(2025, 1, 1), Amount: storetest.Dec("1"), Description: "x",
			NormalizedDescription: "x", DuplicateHash: "h", Status: model.TxnUnprocessed,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = db.Queries().GetTransaction(ctx, "txn-x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClearableTransactions_ScopesToStatementAndSession(t *testing.T) {
	db := storetest.Open(t)
	storetest.Seed(t, db)
	ctx := context.Background()
	q := db.Queries()
	feed := storetest.Feed(t, db, "feed-1")
	storetest.Txn(t, db, feed, "in-range", storetest.Date(2025, 1, 10), "5.00", "A")
	storetest.Txn(t, db, feed, "after", storetest.Date(2025, 2, 10), "5.00", "B")
	storetest.Txn(t, db, feed, "other-session", storetest.Date(2025, 1, 11), "5.00", "C")
	storetest.Txn(t, db, feed, "this-session", storetest.Date(2025, 1, 12), "5.00", "D")
	require.NoError(t, q.SetTransactionReconciliation(ctx, "other-session", "rec-old", time.Now()))
	require.NoError(t, q.SetTransactionReconciliation(ctx, "this-session", "rec-1", time.Now()))

	got, err := q.ClearableTransactions(ctx, storetest.OrgID, storetest.BankAccountID, storetest.Date(2025, 1, 31), "rec-1")
	require.NoError(t, err)
	var ids []string
	for _, txn := range got {
		ids = append(ids, txn.ID)
	}
	assert.Equal(t, []string{"in-range", "this-session"}, ids)
}

func TestRules_ActiveOrdering(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()
	q := db.Queries()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rules := []model.BankRule{
		{ID: "low", Priority: 1, IsActive: true, CreatedAt: base},
		{ID: "high-old", Priority: 10, IsActive: true, CreatedAt: base},
		{ID: "high-new", Priority: 10, IsActive: true, CreatedAt: base.Add(time.Hour)},
		{ID: "inactive", Priority: 99, IsActive: false, CreatedAt: base},
	}
	for _, r := range rules {
		r.OrgID = storetest.OrgID
		r.Name = r.ID
		r.Field = model.FieldDescription
		r.Operator = model.OpContains
		r.Value = "x"
		r.UpdatedAt = r.CreatedAt
		require.NoError(t, q.InsertRule(ctx, r))
	}

	got, err := q.ActiveRules(ctx, storetest.OrgID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "high-new", got[0].ID)
	assert.Equal(t, "high-old", got[1].ID)
	assert.Equal(t, "low", got[2].ID)

	require.NoError(t, q.RecordRuleApplied(ctx, "low", base))
	low, err := q.GetRule(ctx, "low")
	require.NoError(t, err)
	assert.Equal(t, 1, low.TimesApplied)
	require.NotNil(t, low.LastAppliedAt)
}

func TestReconciliation_RoundTripAndFinalizedGuard(t *testing.T) {
	db := storetest.Open(t)
	storetest.Seed(t, db)
	ctx := context.Background()
	q := db.Queries()
	now := time.Now().UTC()

	rec := model.BankReconciliation{
		ID:               "rec-1",
		OrgID:            storetest.OrgID,
		BankAccountID:    storetest.BankAccountID,
		StatementDate:    storetest.Date(2025, 1, 31),
		OpeningBalance:   storetest.Dec("100"),
		StatementBalance: storetest.Dec("250.50"),
		Status:           model.ReconInProgress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, q.InsertReconciliation(ctx, rec))

	n, err := q.CountInProgress(ctx, storetest.BankAccountID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec.ClearedTransactionIDs = []string{"t1", "t2"}
	rec.Adjustments = []model.Adjustment{{ID: "a1", Type: model.AdjustmentFee, Amount: storetest.Dec("2.50")}}
	require.NoError(t, q.UpdateReconciliation(ctx, rec))

	got, err := q.GetReconciliation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, got.ClearedTransactionIDs)
	assert.Empty(t, got.ClearedPaymentIDs)
	require.Len(t, got.Adjustments, 1)
	assert.True(t, got.Adjustments[0].Amount.Equal(storetest.Dec("2.50")))
	assert.Nil(t, got.AuditReport)

	rec.Status = model.ReconFinalized
	rec.FinalizedAt = &now
	rec.FinalizedBy = "user-1"
	rec.AuditReport = &model.AuditReport{ReconciliationID: rec.ID, GeneratedBy: "user-1"}
	require.NoError(t, q.UpdateReconciliation(ctx, rec))

	got, err = q.GetReconciliation(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Finalized())
	require.NotNil(t, got.AuditReport)
	assert.Equal(t, "user-1", got.AuditReport.GeneratedBy)

	rec.ClearedTransactionIDs = nil
	assert.ErrorIs(t, q.UpdateReconciliation(ctx, rec), store.ErrLocked)
}

func TestJournal_SequenceAndLocking(t *testing.T) {
	db := storetest.Open(t)
	storetest.Seed(t, db)
	ctx := context.Background()
	q := db.Queries()

	seq, err := q.MaxTransactionSeq(ctx, storetest.OrgID, 2025, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, seq)

	entry := model.JournalEntry{
		ID:                "je-1",
		OrgID:             storetest.OrgID,
		TransactionNumber: "2025-01-007",
		Date:              storetest.Date(2025, 1, 5),
		Description:       "fee",
		SourceType:        model.SourcePayment,
		SourceID:          "pay-1",
		CreatedAt:         time.Now(),
		Lines: []model.JournalLine{
			{ID: "l1", AccountID: storetest.BankFees, Side: model.Debit, Amount: storetest.Dec("3.00")},
			{ID: "l2", AccountID: storetest.BankGLAccount, Side: model.Credit, Amount: storetest.Dec("3.00")},
		},
	}
	require.NoError(t, q.InsertJournalEntry(ctx, entry))

	seq, err = q.MaxTransactionSeq(ctx, storetest.OrgID, 2025, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, seq)

	entries, err := q.JournalEntriesForSources(ctx, storetest.OrgID, model.SourcePayment, []string{"pay-1", "pay-2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	n, err := q.LockJournalEntries(ctx, []string{"je-1"}, "rec-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := q.GetJournalEntry(ctx, "je-1")
	require.NoError(t, err)
	assert.True(t, got.IsLocked)
	assert.Equal(t, "rec-1", got.ReconciliationID)
	require.Len(t, got.Lines, 2)
	assert.True(t, got.Balanced())
}
