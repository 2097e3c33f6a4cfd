package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/bankrec/internal/model"
)

// InsertRule stores a new categorization rule.
func (s *Queries) InsertRule(ctx context.Context, r model.BankRule) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bank_rules (
			id, org_id, name, field, operator, value, priority, category_account_id, tax_rate_id,
			payee_override, is_active, times_applied, last_applied_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrgID, r.Name, string(r.Field), string(r.Operator), r.Value, r.Priority,
		nullString(r.CategoryAccountID), nullString(r.TaxRateID), nullString(r.PayeeOverride),
		r.IsActive, r.TimesApplied, nullTime(r.LastAppliedAt), fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting rule %s: %w", r.ID, err)
	}
	return nil
}

// UpdateRule rewrites a rule's editable fields.
func (s *Queries) UpdateRule(ctx context.Context, r model.BankRule) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE bank_rules SET
			name = ?, field = ?, operator = ?, value = ?, priority = ?, category_account_id = ?,
			tax_rate_id = ?, payee_override = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, string(r.Field), string(r.Operator), r.Value, r.Priority, nullString(r.CategoryAccountID),
		nullString(r.TaxRateID), nullString(r.PayeeOverride), r.IsActive, fmtTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("updating rule %s: %w", r.ID, err)
	}
	return expectOne(res)
}

// DeleteRule removes a rule.
func (s *Queries) DeleteRule(ctx context.Context, ruleID string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM bank_rules WHERE id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("deleting rule %s: %w", ruleID, err)
	}
	return expectOne(res)
}

// RecordRuleApplied bumps a rule's usage counter.
func (s *Queries) RecordRuleApplied(ctx context.Context, ruleID string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE bank_rules SET times_applied = times_applied + 1, last_applied_at = ? WHERE id = ?`,
		fmtTime(at), ruleID)
	if err != nil {
		return fmt.Errorf("recording rule usage %s: %w", ruleID, err)
	}
	return expectOne(res)
}

const ruleColumns = `id, org_id, name, field, operator, value, priority, category_account_id, tax_rate_id,
	payee_override, is_active, times_applied, last_applied_at, created_at, updated_at`

func scanRule(r rowScanner) (model.BankRule, error) {
	var rule model.BankRule
	var field, op, created, updated string
	var cat, tax, payee, lastApplied sql.NullString
	err := r.Scan(&rule.ID, &rule.OrgID, &rule.Name, &field, &op, &rule.Value, &rule.Priority, &cat, &tax,
		&payee, &rule.IsActive, &rule.TimesApplied, &lastApplied, &created, &updated)
	if err != nil {
		return model.BankRule{}, err
	}
	rule.Field = model.RuleField(field)
	rule.Operator = model.RuleOperator(op)
	rule.CategoryAccountID = cat.String
	rule.TaxRateID = tax.String
	rule.PayeeOverride = payee.String

	if rule.LastAppliedAt, err = parseNullTime(lastApplied); err != nil {
		return model.BankRule{}, err
	}
	if rule.CreatedAt, err = parseTime(created); err != nil {
		return model.BankRule{}, err
	}
	if rule.UpdatedAt, err = parseTime(updated); err != nil {
		return model.BankRule{}, err
	}
	return rule, nil
}

// GetRule returns a rule by id regardless of organization.
func (s *Queries) GetRule(ctx context.Context, ruleID string) (model.BankRule, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM bank_rules WHERE id = ?`, ruleID)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankRule{}, ErrNotFound
	}
	if err != nil {
		return model.BankRule{}, fmt.Errorf("reading rule %s: %w", ruleID, err)
	}
	return r, nil
}

// ActiveRules returns an organization's active rules, highest priority first
// and most recent first among equal priorities.
func (s *Queries) ActiveRules(ctx context.Context, orgID string) ([]model.BankRule, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM bank_rules
		WHERE org_id = ? AND is_active = 1
		ORDER BY priority DESC, created_at DESC, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var out []model.BankRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
