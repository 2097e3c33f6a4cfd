package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleared-dev/bankrec/internal/model"
)

// InsertReconciliation stores a new reconciliation session.
func (s *Queries) InsertReconciliation(ctx context.Context, r model.BankReconciliation) error {
	payIDs, txnIDs, adj, err := encodeReconciliationSets(r)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO bank_reconciliations (
			id, org_id, bank_account_id, statement_date, opening_balance, statement_balance,
			cleared_payment_ids, cleared_transaction_ids, status, book_balance, adjusted_balance,
			adjustments, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrgID, r.BankAccountID, fmtDate(r.StatementDate), r.OpeningBalance, r.StatementBalance,
		payIDs, txnIDs, string(r.Status), r.BookBalance, r.AdjustedBalance,
		adj, r.CreatedBy, fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting reconciliation %s: %w", r.ID, err)
	}
	return nil
}

// UpdateReconciliation rewrites a session's mutable state. Finalized rows are
// never rewritten: the update only matches IN_PROGRESS sessions.
func (s *Queries) UpdateReconciliation(ctx context.Context, r model.BankReconciliation) error {
	payIDs, txnIDs, adj, err := encodeReconciliationSets(r)
	if err != nil {
		return err
	}
	var report any
	if r.AuditReport != nil {
		encoded, err := marshalJSON(r.AuditReport)
		if err != nil {
			return err
		}
		report = encoded
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE bank_reconciliations SET
			cleared_payment_ids = ?, cleared_transaction_ids = ?, status = ?, book_balance = ?,
			adjusted_balance = ?, adjustments = ?, audit_report = ?, finalized_at = ?, finalized_by = ?,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		payIDs, txnIDs, string(r.Status), r.BookBalance,
		r.AdjustedBalance, adj, report, nullTime(r.FinalizedAt), nullString(r.FinalizedBy),
		fmtTime(r.UpdatedAt), r.ID, string(model.ReconInProgress))
	if err != nil {
		return fmt.Errorf("updating reconciliation %s: %w", r.ID, err)
	}
	if err := expectOne(res); err != nil {
		return ErrLocked
	}
	return nil
}

func encodeReconciliationSets(r model.BankReconciliation) (payIDs, txnIDs, adj string, err error) {
	payments := r.ClearedPaymentIDs
	if payments == nil {
		payments = []string{}
	}
	txns := r.ClearedTransactionIDs
	if txns == nil {
		txns = []string{}
	}
	adjustments := r.Adjustments
	if adjustments == nil {
		adjustments = []model.Adjustment{}
	}
	if payIDs, err = marshalJSON(payments); err != nil {
		return "", "", "", err
	}
	if txnIDs, err = marshalJSON(txns); err != nil {
		return "", "", "", err
	}
	if adj, err = marshalJSON(adjustments); err != nil {
		return "", "", "", err
	}
	return payIDs, txnIDs, adj, nil
}

const reconciliationColumns = `id, org_id, bank_account_id, statement_date, opening_balance, statement_balance,
	cleared_payment_ids, cleared_transaction_ids, status, book_balance, adjusted_balance,
	adjustments, audit_report, finalized_at, finalized_by, created_by, created_at, updated_at`

func scanReconciliation(r rowScanner) (model.BankReconciliation, error) {
	var rec model.BankReconciliation
	var stmtDate, payIDs, txnIDs, status, adj, created, updated string
	var report, finalizedAt, finalizedBy sql.NullString
	err := r.Scan(&rec.ID, &rec.OrgID, &rec.BankAccountID, &stmtDate, &rec.OpeningBalance, &rec.StatementBalance,
		&payIDs, &txnIDs, &status, &rec.BookBalance, &rec.AdjustedBalance,
		&adj, &report, &finalizedAt, &finalizedBy, &rec.CreatedBy, &created, &updated)
	if err != nil {
		return model.BankReconciliation{}, err
	}
	rec.Status = model.ReconciliationStatus(status)
	rec.FinalizedBy = finalizedBy.String

	if rec.StatementDate, err = parseDate(stmtDate); err != nil {
		return model.BankReconciliation{}, err
	}
	if rec.FinalizedAt, err = parseNullTime(finalizedAt); err != nil {
		return model.BankReconciliation{}, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return model.BankReconciliation{}, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return model.BankReconciliation{}, err
	}
	if err := unmarshalJSON(payIDs, &rec.ClearedPaymentIDs); err != nil {
		return model.BankReconciliation{}, err
	}
	if err := unmarshalJSON(txnIDs, &rec.ClearedTransactionIDs); err != nil {
		return model.BankReconciliation{}, err
	}
	if err := unmarshalJSON(adj, &rec.Adjustments); err != nil {
		return model.BankReconciliation{}, err
	}
	if report.Valid && report.String != "" {
		rec.AuditReport = &model.AuditReport{}
		if err := unmarshalJSON(report.String, rec.AuditReport); err != nil {
			return model.BankReconciliation{}, err
		}
	}
	return rec, nil
}

// GetReconciliation returns a session by id regardless of organization.
func (s *Queries) GetReconciliation(ctx context.Context, reconciliationID string) (model.BankReconciliation, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+reconciliationColumns+` FROM bank_reconciliations WHERE id = ?`, reconciliationID)
	rec, err := scanReconciliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankReconciliation{}, ErrNotFound
	}
	if err != nil {
		return model.BankReconciliation{}, fmt.Errorf("reading reconciliation %s: %w", reconciliationID, err)
	}
	return rec, nil
}

// ListReconciliations returns an organization's sessions, newest statement
// first. An empty bankAccountID lists every account.
func (s *Queries) ListReconciliations(ctx context.Context, orgID, bankAccountID string) ([]model.BankReconciliation, error) {
	query := `SELECT ` + reconciliationColumns + ` FROM bank_reconciliations WHERE org_id = ?`
	args := []any{orgID}
	if bankAccountID != "" {
		query += ` AND bank_account_id = ?`
		args = append(args, bankAccountID)
	}
	query += ` ORDER BY statement_date DESC, created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reconciliations: %w", err)
	}
	defer rows.Close()

	var out []model.BankReconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reconciliation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountInProgress counts open sessions on a bank account.
func (s *Queries) CountInProgress(ctx context.Context, bankAccountID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bank_reconciliations WHERE bank_account_id = ? AND status = ?`,
		bankAccountID, string(model.ReconInProgress)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting open reconciliations: %w", err)
	}
	return n, nil
}
