package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/bankrec/internal/model"
)

// InsertPayment stores a payment.
func (s *Queries) InsertPayment(ctx context.Context, p model.Payment) error {
	source := p.Source
	if source == "" {
		source = model.PaymentSourceManual
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payments (
			id, org_id, bank_account_id, date, amount, direction, party_name, reference, source,
			invoice_id, bill_id, is_reconciled, reconciliation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.BankAccountID, fmtDate(p.Date), p.Amount, string(p.Direction), p.PartyName, p.Reference, string(source),
		nullString(p.InvoiceID), nullString(p.BillID), p.IsReconciled, nullString(p.ReconciliationID), fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting payment %s: %w", p.ID, err)
	}
	return nil
}

const paymentColumns = `id, org_id, bank_account_id, date, amount, direction, party_name, reference, source,
	invoice_id, bill_id, is_reconciled, reconciliation_id, is_locked, locked_at, created_at`

func scanPayment(r rowScanner) (model.Payment, error) {
	var p model.Payment
	var date, dir, source, created string
	var inv, bill, reconID, lockedAt sql.NullString
	err := r.Scan(&p.ID, &p.OrgID, &p.BankAccountID, &date, &p.Amount, &dir, &p.PartyName, &p.Reference, &source,
		&inv, &bill, &p.IsReconciled, &reconID, &p.IsLocked, &lockedAt, &created)
	if err != nil {
		return model.Payment{}, err
	}
	p.Direction = model.PaymentDirection(dir)
	p.Source = model.PaymentSource(source)
	p.InvoiceID = inv.String
	p.BillID = bill.String
	p.ReconciliationID = reconID.String

	if p.Date, err = parseDate(date); err != nil {
		return model.Payment{}, err
	}
	if p.LockedAt, err = parseNullTime(lockedAt); err != nil {
		return model.Payment{}, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (s *Queries) queryPayments(ctx context.Context, query string, args ...any) ([]model.Payment, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPayment returns a payment by id regardless of organization.
func (s *Queries) GetPayment(ctx context.Context, paymentID string) (model.Payment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, paymentID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, ErrNotFound
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("reading payment %s: %w", paymentID, err)
	}
	return p, nil
}

// SetPaymentReconciliation tags (reconciliationID non-empty) or untags a
// payment. Locked rows return ErrLocked.
func (s *Queries) SetPaymentReconciliation(ctx context.Context, paymentID, reconciliationID string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE payments SET is_reconciled = ?, reconciliation_id = ?
		WHERE id = ? AND is_locked = 0`,
		reconciliationID != "", nullString(reconciliationID), paymentID)
	if err != nil {
		return fmt.Errorf("updating reconciliation flag on payment %s: %w", paymentID, err)
	}
	if err := expectOne(res); err != nil {
		return ErrLocked
	}
	return nil
}

// LockPayments permanently locks the given payments.
func (s *Queries) LockPayments(ctx context.Context, ids []string, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{fmtTime(now)}, stringArgs(ids)...)
	res, err := s.q.ExecContext(ctx, `
		UPDATE payments SET is_locked = 1, locked_at = ?
		WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("locking payments: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearablePayments returns a bank account's payments dated on or before
// statementDate that are unreconciled or already tagged to reconciliationID.
func (s *Queries) ClearablePayments(ctx context.Context, orgID, bankAccountID string, statementDate time.Time, reconciliationID string) ([]model.Payment, error) {
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE org_id = ? AND bank_account_id = ? AND date <= ?
		  AND (is_reconciled = 0 OR reconciliation_id = ?)
		ORDER BY date, created_at, id`,
		orgID, bankAccountID, fmtDate(statementDate), reconciliationID)
}

// UnclearedPaymentsBetween returns unreconciled payments on a bank account
// dated within [from, to].
func (s *Queries) UnclearedPaymentsBetween(ctx context.Context, orgID, bankAccountID string, from, to time.Time) ([]model.Payment, error) {
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE org_id = ? AND bank_account_id = ? AND is_reconciled = 0 AND date BETWEEN ? AND ?
		ORDER BY date, id`,
		orgID, bankAccountID, fmtDate(from), fmtDate(to))
}

// InsertInvoice stores an invoice.
func (s *Queries) InsertInvoice(ctx context.Context, inv model.Invoice) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO invoices (id, org_id, number, customer_name, date, due_date, total, amount_due, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.OrgID, inv.Number, inv.CustomerName, fmtDate(inv.Date), fmtDate(inv.DueDate), inv.Total, inv.AmountDue, string(inv.Status))
	if err != nil {
		return fmt.Errorf("inserting invoice %s: %w", inv.ID, err)
	}
	return nil
}

const invoiceColumns = `id, org_id, number, customer_name, date, due_date, total, amount_due, status`

func scanInvoice(r rowScanner) (model.Invoice, error) {
	var inv model.Invoice
	var date, due, status string
	if err := r.Scan(&inv.ID, &inv.OrgID, &inv.Number, &inv.CustomerName, &date, &due, &inv.Total, &inv.AmountDue, &status); err != nil {
		return model.Invoice{}, err
	}
	inv.Status = model.DocumentStatus(status)
	var err error
	if inv.Date, err = parseDate(date); err != nil {
		return model.Invoice{}, err
	}
	if inv.DueDate, err = parseDate(due); err != nil {
		return model.Invoice{}, err
	}
	return inv, nil
}

// GetInvoice returns an invoice by id regardless of organization.
func (s *Queries) GetInvoice(ctx context.Context, invoiceID string) (model.Invoice, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, invoiceID)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invoice{}, ErrNotFound
	}
	if err != nil {
		return model.Invoice{}, fmt.Errorf("reading invoice %s: %w", invoiceID, err)
	}
	return inv, nil
}

// OpenInvoicesDatedBetween returns open invoices whose issue date lies in [from, to].
func (s *Queries) OpenInvoicesDatedBetween(ctx context.Context, orgID string, from, to time.Time) ([]model.Invoice, error) {
	args := append([]any{orgID, fmtDate(from), fmtDate(to)}, openStatusArgs()...)
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE org_id = ? AND date BETWEEN ? AND ? AND status IN (`+placeholders(len(model.OpenStatuses))+`)
		ORDER BY date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying open invoices: %w", err)
	}
	defer rows.Close()

	var out []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// InsertBill stores a bill.
func (s *Queries) InsertBill(ctx context.Context, b model.Bill) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bills (id, org_id, number, vendor_name, date, due_date, total, amount_due, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OrgID, b.Number, b.VendorName, fmtDate(b.Date), fmtDate(b.DueDate), b.Total, b.AmountDue, string(b.Status))
	if err != nil {
		return fmt.Errorf("inserting bill %s: %w", b.ID, err)
	}
	return nil
}

const billColumns = `id, org_id, number, vendor_name, date, due_date, total, amount_due, status`

func scanBill(r rowScanner) (model.Bill, error) {
	var b model.Bill
	var date, due, status string
	if err := r.Scan(&b.ID, &b.OrgID, &b.Number, &b.VendorName, &date, &due, &b.Total, &b.AmountDue, &status); err != nil {
		return model.Bill{}, err
	}
	b.Status = model.DocumentStatus(status)
	var err error
	if b.Date, err = parseDate(date); err != nil {
		return model.Bill{}, err
	}
	if b.DueDate, err = parseDate(due); err != nil {
		return model.Bill{}, err
	}
	return b, nil
}

// GetBill returns a bill by id regardless of organization.
func (s *Queries) GetBill(ctx context.Context, billID string) (model.Bill, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, billID)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bill{}, ErrNotFound
	}
	if err != nil {
		return model.Bill{}, fmt.Errorf("reading bill %s: %w", billID, err)
	}
	return b, nil
}

// OpenBillsDatedBetween returns open bills whose issue date lies in [from, to].
func (s *Queries) OpenBillsDatedBetween(ctx context.Context, orgID string, from, to time.Time) ([]model.Bill, error) {
	args := append([]any{orgID, fmtDate(from), fmtDate(to)}, openStatusArgs()...)
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE org_id = ? AND date BETWEEN ? AND ? AND status IN (`+placeholders(len(model.OpenStatuses))+`)
		ORDER BY date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying open bills: %w", err)
	}
	defer rows.Close()

	var out []model.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func openStatusArgs() []any {
	args := make([]any, len(model.OpenStatuses))
	for i, st := range model.OpenStatuses {
		args[i] = string(st)
	}
	return args
}
