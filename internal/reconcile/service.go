// Package reconcile runs statement-period bank reconciliations: the cleared
// item worksheet, payment pairing, adjustments and the final audit lock.
package reconcile

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/journal"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Service manages reconciliation sessions.
type Service struct {
	db      *store.DB
	journal *journal.Service
	log     zerolog.Logger
	now     func() time.Time
}

// NewService creates a reconciliation Service posting adjustments through js.
func NewService(db *store.DB, js *journal.Service, log zerolog.Logger) *Service {
	return &Service{
		db:      db,
		journal: js,
		log:     log.With().Str("service", "reconcile").Logger(),
		now:     time.Now,
	}
}

// OpenRequest starts a session. A nil OpeningBalance carries forward the
// bank account's last reconciled balance.
type OpenRequest struct {
	BankAccountID    string
	StatementDate    time.Time
	StatementBalance decimal.Decimal
	OpeningBalance   *decimal.Decimal
	CreatedBy        string
}

// Worksheet is a session with its clearable items and current gap.
type Worksheet struct {
	Reconciliation model.BankReconciliation
	Items          []ClearableItem
	Gap            Gap
}

// BulkResult counts a best-effort batch.
type BulkResult struct {
	Toggled int
	Failed  int
	Errors  []string
}

func loadReconciliation(ctx context.Context, q *store.Queries, orgID, recID string) (model.BankReconciliation, error) {
	rec, err := q.GetReconciliation(ctx, recID)
	if errors.Is(err, store.ErrNotFound) {
		return model.BankReconciliation{}, apperr.NotFound("reconciliation", recID)
	}
	if err != nil {
		return model.BankReconciliation{}, err
	}
	if err := apperr.CheckOwner("reconciliation", recID, rec.OrgID, orgID); err != nil {
		return model.BankReconciliation{}, err
	}
	return rec, nil
}

func loadOpen(ctx context.Context, q *store.Queries, orgID, recID string) (model.BankReconciliation, error) {
	rec, err := loadReconciliation(ctx, q, orgID, recID)
	if err != nil {
		return rec, err
	}
	if rec.Finalized() {
		return rec, apperr.Conflict("reconciliation %s is finalized", recID)
	}
	return rec, nil
}

func clearedSet(rec model.BankReconciliation) ClearedSet {
	return NewClearedSet(rec.ClearedPaymentIDs, rec.ClearedTransactionIDs)
}

// Open starts a new IN_PROGRESS session. A bank account has at most one
// open session, and its statement date must follow the last reconciled date.
func (s *Service) Open(ctx context.Context, orgID string, req OpenRequest) (model.BankReconciliation, error) {
	if req.BankAccountID == "" {
		return model.BankReconciliation{}, apperr.Invalid("bankAccountId", "bank account is required")
	}
	if req.StatementDate.IsZero() {
		return model.BankReconciliation{}, apperr.Invalid("statementDate", "statement date is required")
	}

	var rec model.BankReconciliation
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		bank, err := accounts.LookupBankAccount(ctx, q, orgID, req.BankAccountID)
		if err != nil {
			return err
		}
		open, err := q.CountInProgress(ctx, bank.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.Conflict("bank account %s already has a reconciliation in progress", bank.ID)
		}
		if bank.LastReconciledDate != nil && !req.StatementDate.After(*bank.LastReconciledDate) {
			return apperr.Invalid("statementDate", "statement date must be after %s, the last reconciled date",
				bank.LastReconciledDate.Format(time.DateOnly))
		}

		opening := bank.LastReconciledBalance
		if req.OpeningBalance != nil {
			opening = *req.OpeningBalance
		}
		now := s.now().UTC()
		rec = model.BankReconciliation{
			ID:               id.New(),
			OrgID:            orgID,
			BankAccountID:    bank.ID,
			StatementDate:    req.StatementDate,
			OpeningBalance:   opening,
			StatementBalance: req.StatementBalance,
			Status:           model.ReconInProgress,
			BookBalance:      opening,
			AdjustedBalance:  opening,
			CreatedBy:        req.CreatedBy,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return q.InsertReconciliation(ctx, rec)
	})
	if err != nil {
		return model.BankReconciliation{}, err
	}
	s.log.Info().
		Str("org", orgID).
		Str("reconciliation", rec.ID).
		Str("bank_account", rec.BankAccountID).
		Str("statement_date", rec.StatementDate.Format(time.DateOnly)).
		Msg("reconciliation opened")
	return rec, nil
}

// Get returns a session.
func (s *Service) Get(ctx context.Context, orgID, recID string) (model.BankReconciliation, error) {
	return loadReconciliation(ctx, s.db.Queries(), orgID, recID)
}

// List returns an organization's sessions, optionally for one bank account.
func (s *Service) List(ctx context.Context, orgID, bankAccountID string) ([]model.BankReconciliation, error) {
	return s.db.Queries().ListReconciliations(ctx, orgID, bankAccountID)
}

// GetClearableItems returns the payments and bank transactions on a bank
// account dated on or before statementDate that are unreconciled or tagged
// to recID. IsCleared reflects membership in recID's cleared sets; an empty
// recID marks nothing cleared.
func (s *Service) GetClearableItems(ctx context.Context, orgID, bankAccountID string, statementDate time.Time, recID string) ([]ClearableItem, error) {
	q := s.db.Queries()
	if _, err := accounts.LookupBankAccount(ctx, q, orgID, bankAccountID); err != nil {
		return nil, err
	}
	cleared := NewClearedSet(nil, nil)
	if recID != "" {
		rec, err := loadReconciliation(ctx, q, orgID, recID)
		if err != nil {
			return nil, err
		}
		cleared = clearedSet(rec)
	}
	return clearableItems(ctx, q, orgID, bankAccountID, statementDate, recID, cleared)
}

func clearableItems(ctx context.Context, q *store.Queries, orgID, bankAccountID string, statementDate time.Time, recID string, cleared ClearedSet) ([]ClearableItem, error) {
	payments, err := q.ClearablePayments(ctx, orgID, bankAccountID, statementDate, recID)
	if err != nil {
		return nil, err
	}
	txns, err := q.ClearableTransactions(ctx, orgID, bankAccountID, statementDate, recID)
	if err != nil {
		return nil, err
	}

	items := make([]ClearableItem, 0, len(payments)+len(txns))
	for _, p := range payments {
		items = append(items, paymentItem(p, cleared))
	}
	for _, t := range txns {
		items = append(items, transactionItem(t, cleared))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func paymentItem(p model.Payment, cleared ClearedSet) ClearableItem {
	signed := p.SignedAmount()
	item := ClearableItem{
		ID:           p.ID,
		Type:         ItemPayment,
		Date:         p.Date,
		Description:  p.PartyName,
		Reference:    p.Reference,
		Party:        p.PartyName,
		SignedAmount: signed,
		Category:     categoryOf(signed),
		IsLocked:     p.IsLocked,
		IsAdjustment: p.Source == model.PaymentSourceAdjustment,
	}
	item.IsCleared = cleared.Contains(item.Ref())
	return item
}

func transactionItem(t model.BankTransaction, cleared ClearedSet) ClearableItem {
	item := ClearableItem{
		ID:           t.ID,
		Type:         ItemBankTransaction,
		Date:         t.Date,
		Description:  t.Description,
		Reference:    t.Reference,
		Party:        t.Payee,
		SignedAmount: t.Amount,
		Category:     categoryOf(t.Amount),
		IsLocked:     t.IsLocked,

		MatchedPaymentID: t.MatchedPaymentID,
	}
	item.IsCleared = cleared.Contains(item.Ref())
	return item
}

// recompute loads the session's items, evaluates the gap and stamps the
// book and adjusted balances onto rec.
func (s *Service) recompute(ctx context.Context, q *store.Queries, rec *model.BankReconciliation) ([]ClearableItem, Gap, error) {
	cleared := clearedSet(*rec)
	items, err := clearableItems(ctx, q, rec.OrgID, rec.BankAccountID, rec.StatementDate, rec.ID, cleared)
	if err != nil {
		return nil, Gap{}, err
	}
	gap := CalculateGap(rec.OpeningBalance, rec.StatementBalance, items, cleared)
	rec.BookBalance = bookBalance(rec.OpeningBalance, items, cleared)
	rec.AdjustedBalance = gap.CalculatedBalance
	rec.UpdatedAt = s.now().UTC()
	return items, gap, nil
}

// save persists an in-progress session, reporting a concurrent finalize as
// a state conflict.
func save(ctx context.Context, q *store.Queries, rec model.BankReconciliation) error {
	err := q.UpdateReconciliation(ctx, rec)
	if errors.Is(err, store.ErrLocked) {
		return apperr.Conflict("reconciliation %s is finalized", rec.ID)
	}
	return err
}

// Worksheet returns the session's items and gap, recomputed from the store.
// Open sessions also have their book and adjusted balances refreshed.
func (s *Service) Worksheet(ctx context.Context, orgID, recID string) (Worksheet, error) {
	var ws Worksheet
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		rec, err := loadReconciliation(ctx, q, orgID, recID)
		if err != nil {
			return err
		}
		if rec.Finalized() {
			cleared := clearedSet(rec)
			items, err := clearableItems(ctx, q, orgID, rec.BankAccountID, rec.StatementDate, rec.ID, cleared)
			if err != nil {
				return err
			}
			ws = Worksheet{Reconciliation: rec, Items: items, Gap: CalculateGap(rec.OpeningBalance, rec.StatementBalance, items, cleared)}
			return nil
		}
		items, gap, err := s.recompute(ctx, q, &rec)
		if err != nil {
			return err
		}
		if err := save(ctx, q, rec); err != nil {
			return err
		}
		ws = Worksheet{Reconciliation: rec, Items: items, Gap: gap}
		return nil
	})
	return ws, err
}
