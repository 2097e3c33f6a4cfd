package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

// UpsertAccount inserts or replaces a chart-of-accounts entry.
func (s *Queries) UpsertAccount(ctx context.Context, a model.Account) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (org_id, id, name, type, parent_id, is_control, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			parent_id = excluded.parent_id,
			is_control = excluded.is_control,
			description = excluded.description`,
		a.OrgID, a.ID, a.Name, string(a.Type), nullString(a.ParentID), a.IsControl, a.Description)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", a.ID, err)
	}
	return nil
}

const accountColumns = `org_id, id, name, type, parent_id, is_control, description`

func scanAccount(r rowScanner) (model.Account, error) {
	var a model.Account
	var typ string
	var parent sql.NullString
	if err := r.Scan(&a.OrgID, &a.ID, &a.Name, &typ, &parent, &a.IsControl, &a.Description); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	a.ParentID = parent.String
	return a, nil
}

// GetAccount returns one chart account of an organization.
func (s *Queries) GetAccount(ctx context.Context, orgID, accountID string) (model.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id = ? AND id = ?`, orgID, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("reading account %s: %w", accountID, err)
	}
	return a, nil
}

// ListAccounts returns the organization's chart ordered by code.
func (s *Queries) ListAccounts(ctx context.Context, orgID string) ([]model.Account, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertBankAccount stores a bank account.
func (s *Queries) InsertBankAccount(ctx context.Context, b model.BankAccount) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bank_accounts (id, org_id, name, last_four, gl_account_id, last_reconciled_date, last_reconciled_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OrgID, b.Name, b.LastFour, b.GLAccountID, nullDate(b.LastReconciledDate), b.LastReconciledBalance)
	if err != nil {
		return fmt.Errorf("inserting bank account %s: %w", b.ID, err)
	}
	return nil
}

const bankAccountColumns = `id, org_id, name, last_four, gl_account_id, last_reconciled_date, last_reconciled_balance`

func scanBankAccount(r rowScanner) (model.BankAccount, error) {
	var b model.BankAccount
	var lastDate sql.NullString
	if err := r.Scan(&b.ID, &b.OrgID, &b.Name, &b.LastFour, &b.GLAccountID, &lastDate, &b.LastReconciledBalance); err != nil {
		return model.BankAccount{}, err
	}
	d, err := parseNullDate(lastDate)
	if err != nil {
		return model.BankAccount{}, err
	}
	b.LastReconciledDate = d
	return b, nil
}

// GetBankAccount returns a bank account by id regardless of organization;
// callers check ownership.
func (s *Queries) GetBankAccount(ctx context.Context, bankAccountID string) (model.BankAccount, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = ?`, bankAccountID)
	b, err := scanBankAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankAccount{}, ErrNotFound
	}
	if err != nil {
		return model.BankAccount{}, fmt.Errorf("reading bank account %s: %w", bankAccountID, err)
	}
	return b, nil
}

// ListBankAccounts returns the organization's bank accounts by name.
func (s *Queries) ListBankAccounts(ctx context.Context, orgID string) ([]model.BankAccount, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE org_id = ? ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing bank accounts: %w", err)
	}
	defer rows.Close()

	var out []model.BankAccount
	for rows.Next() {
		b, err := scanBankAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bank account: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBankAccountCheckpoint records the last reconciled statement.
func (s *Queries) UpdateBankAccountCheckpoint(ctx context.Context, bankAccountID string, date time.Time, balance decimal.Decimal) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE bank_accounts SET last_reconciled_date = ?, last_reconciled_balance = ? WHERE id = ?`,
		fmtDate(date), balance, bankAccountID)
	if err != nil {
		return fmt.Errorf("updating bank account checkpoint: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
