// Package rules categorizes unprocessed bank transactions with
// user-defined, priority-ordered rules.
package rules

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// RuleConfidence is the score given to rule-categorized transactions.
const RuleConfidence = 90

// Service manages rules and applies them.
type Service struct {
	db  *store.DB
	log zerolog.Logger
	now func() time.Time
}

// NewService creates a rules Service.
func NewService(db *store.DB, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With().Str("service", "rules").Logger(),
		now: time.Now,
	}
}

// Draft holds the editable fields of a rule.
type Draft struct {
	Name              string
	Field             model.RuleField
	Operator          model.RuleOperator
	Value             string
	Priority          int
	CategoryAccountID string
	TaxRateID         string
	PayeeOverride     string
	Active            bool
}

// ApplyResult summarizes a rule run.
type ApplyResult struct {
	Processed   int
	Categorized int
	Errors      int
}

func validateDraft(d Draft) error {
	switch d.Field {
	case model.FieldDescription, model.FieldPayee, model.FieldReference, model.FieldAmount:
	default:
		return apperr.Invalid("field", "unknown field %q", d.Field)
	}
	switch d.Operator {
	case model.OpContains, model.OpEquals, model.OpStartsWith, model.OpEndsWith:
	case model.OpRegex:
		if _, err := regexp.Compile("(?i)" + d.Value); err != nil {
			return apperr.Invalid("value", "invalid regular expression: %v", err)
		}
	default:
		return apperr.Invalid("operator", "unknown operator %q", d.Operator)
	}
	if strings.TrimSpace(d.Value) == "" {
		return apperr.Invalid("value", "value is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return apperr.Invalid("name", "name is required")
	}
	return nil
}

// checkCategory resolves the draft's category account when it names one.
func checkCategory(ctx context.Context, q *store.Queries, orgID string, d Draft) error {
	if d.CategoryAccountID == "" {
		return nil
	}
	_, err := accounts.Lookup(ctx, q, orgID, d.CategoryAccountID)
	return err
}

// GetRules returns the active rules, highest priority first, then most
// recently created.
func (s *Service) GetRules(ctx context.Context, orgID string) ([]model.BankRule, error) {
	return s.db.Queries().ActiveRules(ctx, orgID)
}

func (s *Service) owned(ctx context.Context, q *store.Queries, orgID, ruleID string) (model.BankRule, error) {
	r, err := q.GetRule(ctx, ruleID)
	if errors.Is(err, store.ErrNotFound) {
		return model.BankRule{}, apperr.NotFound("rule", ruleID)
	}
	if err != nil {
		return model.BankRule{}, err
	}
	if err := apperr.CheckOwner("rule", ruleID, r.OrgID, orgID); err != nil {
		return model.BankRule{}, err
	}
	return r, nil
}

// GetRule returns one rule owned by orgID.
func (s *Service) GetRule(ctx context.Context, orgID, ruleID string) (model.BankRule, error) {
	return s.owned(ctx, s.db.Queries(), orgID, ruleID)
}

// CreateRule validates and stores a new rule.
func (s *Service) CreateRule(ctx context.Context, orgID string, d Draft) (model.BankRule, error) {
	if err := validateDraft(d); err != nil {
		return model.BankRule{}, err
	}
	now := s.now().UTC()
	r := model.BankRule{
		ID:        id.New(),
		OrgID:     orgID,
		CreatedAt: now,
	}
	applyDraft(&r, d, now)

	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		if err := checkCategory(ctx, q, orgID, d); err != nil {
			return err
		}
		return q.InsertRule(ctx, r)
	})
	if err != nil {
		return model.BankRule{}, err
	}
	s.log.Debug().Str("org", orgID).Str("rule", r.ID).Str("name", r.Name).Msg("rule created")
	return r, nil
}

// UpdateRule replaces a rule's editable fields.
func (s *Service) UpdateRule(ctx context.Context, orgID, ruleID string, d Draft) (model.BankRule, error) {
	if err := validateDraft(d); err != nil {
		return model.BankRule{}, err
	}
	var r model.BankRule
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		var err error
		if r, err = s.owned(ctx, q, orgID, ruleID); err != nil {
			return err
		}
		if err := checkCategory(ctx, q, orgID, d); err != nil {
			return err
		}
		applyDraft(&r, d, s.now().UTC())
		return q.UpdateRule(ctx, r)
	})
	if err != nil {
		return model.BankRule{}, err
	}
	return r, nil
}

// DeleteRule removes a rule. Transactions it categorized keep their
// category and rule reference.
func (s *Service) DeleteRule(ctx context.Context, orgID, ruleID string) error {
	return s.db.WithTx(ctx, func(q *store.Queries) error {
		if _, err := s.owned(ctx, q, orgID, ruleID); err != nil {
			return err
		}
		return q.DeleteRule(ctx, ruleID)
	})
}

func applyDraft(r *model.BankRule, d Draft, now time.Time) {
	r.Name = strings.TrimSpace(d.Name)
	r.Field = d.Field
	r.Operator = d.Operator
	r.Value = d.Value
	r.Priority = d.Priority
	r.CategoryAccountID = d.CategoryAccountID
	r.TaxRateID = d.TaxRateID
	r.PayeeOverride = d.PayeeOverride
	r.IsActive = d.Active
	r.UpdatedAt = now
}

// ApplyRulesToUnprocessed runs the active rules over every UNPROCESSED
// transaction, optionally scoped to one bank account. The first matching
// rule categorizes a transaction. Each transaction commits on its own, so a
// failure is counted and the run continues.
func (s *Service) ApplyRulesToUnprocessed(ctx context.Context, orgID, bankAccountID string) (ApplyResult, error) {
	q := s.db.Queries()
	ordered, err := q.ActiveRules(ctx, orgID)
	if err != nil {
		return ApplyResult{}, err
	}
	txns, err := q.UnprocessedTransactions(ctx, orgID, bankAccountID)
	if err != nil {
		return ApplyResult{}, err
	}

	set := Compile(ordered)
	var res ApplyResult
	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Processed++

		rule, ok, err := set.FirstMatch(txn)
		if err != nil {
			res.Errors++
			s.log.Warn().Err(err).Str("txn", txn.ID).Msg("rule evaluation failed")
			continue
		}
		if !ok {
			continue
		}

		if err := s.categorize(ctx, txn, rule); err != nil {
			res.Errors++
			s.log.Warn().Err(err).Str("txn", txn.ID).Str("rule", rule.ID).Msg("applying rule failed")
			continue
		}
		res.Categorized++
	}

	s.log.Info().
		Str("org", orgID).
		Int("processed", res.Processed).
		Int("categorized", res.Categorized).
		Int("errors", res.Errors).
		Msg("rules applied")
	return res, nil
}

func (s *Service) categorize(ctx context.Context, txn model.BankTransaction, rule model.BankRule) error {
	now := s.now().UTC()
	return s.db.WithTx(ctx, func(q *store.Queries) error {
		current, err := q.GetTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		if current.Status != model.TxnUnprocessed || current.Frozen() {
			return apperr.Conflict("transaction %s changed while rules were running", txn.ID)
		}
		if rule.CategoryAccountID != "" {
			current.CategoryAccountID = rule.CategoryAccountID
		}
		if rule.PayeeOverride != "" {
			current.Payee = rule.PayeeOverride
		}
		current.Status = model.TxnCreated
		current.ConfidenceScore = RuleConfidence
		current.AppliedRuleID = rule.ID
		if err := q.UpdateTransactionDecision(ctx, current, now); err != nil {
			return err
		}
		return q.RecordRuleApplied(ctx, rule.ID, now)
	})
}
