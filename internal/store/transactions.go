package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/bankrec/internal/model"
)

// ErrLocked is returned when an update targets a locked row.
var ErrLocked = errors.New("row is locked")

// HashExists reports whether the organization already holds a transaction
// with the given duplicate hash.
func (s *Queries) HashExists(ctx context.Context, orgID, hash string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bank_transactions WHERE org_id = ? AND duplicate_hash = ?`, orgID, hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking duplicate hash: %w", err)
	}
	return n > 0, nil
}

// InsertTransaction stores a new bank transaction.
func (s *Queries) InsertTransaction(ctx context.Context, t model.BankTransaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bank_transactions (
			id, org_id, feed_id, bank_account_id, date, amount, description, normalized_description,
			payee, reference, external_id, duplicate_hash, status, confidence_score,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrgID, t.FeedID, t.BankAccountID, fmtDate(t.Date), t.Amount, t.Description, t.NormalizedDescription,
		nullString(t.Payee), nullString(t.Reference), nullString(t.ExternalID), t.DuplicateHash, string(t.Status), t.ConfidenceScore,
		fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting transaction %s: %w", t.ID, err)
	}
	return nil
}

const transactionColumns = `id, org_id, feed_id, bank_account_id, date, amount, description, normalized_description,
	payee, reference, external_id, duplicate_hash, status, confidence_score,
	matched_invoice_id, matched_bill_id, matched_payment_id, matched_transfer_id,
	category_account_id, applied_rule_id, is_reconciled, reconciled_at, reconciliation_id,
	is_locked, locked_at, created_at, updated_at`

func scanTransaction(r rowScanner) (model.BankTransaction, error) {
	var t model.BankTransaction
	var date, status, created, updated string
	var payee, ref, extID, inv, bill, pay, xfer, cat, rule, reconciledAt, reconID, lockedAt sql.NullString
	err := r.Scan(
		&t.ID, &t.OrgID, &t.FeedID, &t.BankAccountID, &date, &t.Amount, &t.Description, &t.NormalizedDescription,
		&payee, &ref, &extID, &t.DuplicateHash, &status, &t.ConfidenceScore,
		&inv, &bill, &pay, &xfer,
		&cat, &rule, &t.IsReconciled, &reconciledAt, &reconID,
		&t.IsLocked, &lockedAt, &created, &updated,
	)
	if err != nil {
		return model.BankTransaction{}, err
	}

	t.Status = model.TransactionStatus(status)
	t.Payee = payee.String
	t.Reference = ref.String
	t.ExternalID = extID.String
	t.MatchedInvoiceID = inv.String
	t.MatchedBillID = bill.String
	t.MatchedPaymentID = pay.String
	t.MatchedTransferID = xfer.String
	t.CategoryAccountID = cat.String
	t.AppliedRuleID = rule.String
	t.ReconciliationID = reconID.String

	if t.Date, err = parseDate(date); err != nil {
		return model.BankTransaction{}, err
	}
	if t.ReconciledAt, err = parseNullTime(reconciledAt); err != nil {
		return model.BankTransaction{}, err
	}
	if t.LockedAt, err = parseNullTime(lockedAt); err != nil {
		return model.BankTransaction{}, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return model.BankTransaction{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return model.BankTransaction{}, err
	}
	return t, nil
}

func (s *Queries) queryTransactions(ctx context.Context, query string, args ...any) ([]model.BankTransaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []model.BankTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTransaction returns a transaction by id regardless of organization.
func (s *Queries) GetTransaction(ctx context.Context, txnID string) (model.BankTransaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM bank_transactions WHERE id = ?`, txnID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankTransaction{}, ErrNotFound
	}
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("reading transaction %s: %w", txnID, err)
	}
	return t, nil
}

// TransactionMatchedToPayment returns the id of a transaction other than
// excludeTxnID whose matched payment is paymentID, or ErrNotFound.
func (s *Queries) TransactionMatchedToPayment(ctx context.Context, paymentID, excludeTxnID string) (string, error) {
	var txnID string
	err := s.q.QueryRowContext(ctx, `
		SELECT id FROM bank_transactions WHERE matched_payment_id = ? AND id <> ?
		ORDER BY id LIMIT 1`, paymentID, excludeTxnID).Scan(&txnID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("finding match for payment %s: %w", paymentID, err)
	}
	return txnID, nil
}

// TransactionFilter narrows ListTransactions. Empty fields match everything.
type TransactionFilter struct {
	FeedID        string
	BankAccountID string
	Status        model.TransactionStatus
}

// ListTransactions returns an organization's transactions ordered by date.
func (s *Queries) ListTransactions(ctx context.Context, orgID string, f TransactionFilter) ([]model.BankTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions WHERE org_id = ?`
	args := []any{orgID}
	if f.FeedID != "" {
		query += ` AND feed_id = ?`
		args = append(args, f.FeedID)
	}
	if f.BankAccountID != "" {
		query += ` AND bank_account_id = ?`
		args = append(args, f.BankAccountID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY date, created_at, id`
	return s.queryTransactions(ctx, query, args...)
}

// UpdateTransactionDecision persists the outcome of a rule, action or undo:
// status, confidence, match targets, category, applied rule and payee.
// Locked rows are left untouched and ErrLocked is returned.
func (s *Queries) UpdateTransactionDecision(ctx context.Context, t model.BankTransaction, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE bank_transactions SET
			status = ?, confidence_score = ?,
			matched_invoice_id = ?, matched_bill_id = ?, matched_payment_id = ?, matched_transfer_id = ?,
			category_account_id = ?, applied_rule_id = ?, payee = ?, updated_at = ?
		WHERE id = ? AND is_locked = 0`,
		string(t.Status), t.ConfidenceScore,
		nullString(t.MatchedInvoiceID), nullString(t.MatchedBillID), nullString(t.MatchedPaymentID), nullString(t.MatchedTransferID),
		nullString(t.CategoryAccountID), nullString(t.AppliedRuleID), nullString(t.Payee), fmtTime(now),
		t.ID)
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", t.ID, err)
	}
	if err := expectOne(res); err != nil {
		return ErrLocked
	}
	return nil
}

// SetSuggestedConfidence records the best suggestion score on a still
// unprocessed transaction. Other rows are left alone.
func (s *Queries) SetSuggestedConfidence(ctx context.Context, txnID string, score int, now time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE bank_transactions SET confidence_score = ?, updated_at = ?
		WHERE id = ? AND status = ? AND is_locked = 0`,
		score, fmtTime(now), txnID, string(model.TxnUnprocessed))
	if err != nil {
		return fmt.Errorf("updating confidence for %s: %w", txnID, err)
	}
	return nil
}

// SetTransactionReconciliation tags (reconciliationID non-empty) or untags a
// transaction from a reconciliation. Locked rows return ErrLocked.
func (s *Queries) SetTransactionReconciliation(ctx context.Context, txnID, reconciliationID string, now time.Time) error {
	reconciled := reconciliationID != ""
	var at any
	if reconciled {
		at = fmtTime(now)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE bank_transactions SET is_reconciled = ?, reconciled_at = ?, reconciliation_id = ?, updated_at = ?
		WHERE id = ? AND is_locked = 0`,
		reconciled, at, nullString(reconciliationID), fmtTime(now), txnID)
	if err != nil {
		return fmt.Errorf("updating reconciliation flag on %s: %w", txnID, err)
	}
	if err := expectOne(res); err != nil {
		return ErrLocked
	}
	return nil
}

// LockTransactions permanently locks the given transactions.
func (s *Queries) LockTransactions(ctx context.Context, ids []string, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{fmtTime(now), fmtTime(now)}, stringArgs(ids)...)
	res, err := s.q.ExecContext(ctx, `
		UPDATE bank_transactions SET is_locked = 1, locked_at = ?, updated_at = ?
		WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("locking transactions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearableTransactions returns a bank account's transactions dated on or
// before statementDate that are unreconciled or already tagged to
// reconciliationID.
func (s *Queries) ClearableTransactions(ctx context.Context, orgID, bankAccountID string, statementDate time.Time, reconciliationID string) ([]model.BankTransaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM bank_transactions
		WHERE org_id = ? AND bank_account_id = ? AND date <= ?
		  AND (is_reconciled = 0 OR reconciliation_id = ?)
		ORDER BY date, created_at, id`,
		orgID, bankAccountID, fmtDate(statementDate), reconciliationID)
}

// UnprocessedTransactions returns UNPROCESSED, unlocked transactions of an
// organization, optionally scoped to one bank account.
func (s *Queries) UnprocessedTransactions(ctx context.Context, orgID, bankAccountID string) ([]model.BankTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions
		WHERE org_id = ? AND status = ? AND is_locked = 0 AND is_reconciled = 0`
	args := []any{orgID, string(model.TxnUnprocessed)}
	if bankAccountID != "" {
		query += ` AND bank_account_id = ?`
		args = append(args, bankAccountID)
	}
	query += ` ORDER BY date, created_at, id`
	return s.queryTransactions(ctx, query, args...)
}
