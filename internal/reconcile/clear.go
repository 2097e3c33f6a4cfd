package reconcile

import (
	"context"
	"errors"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// member is a loaded clearable row with the session it is tagged to.
type member struct {
	item             ClearableItem
	reconciliationID string
}

// loadMember resolves ref and checks it may count toward rec.
func loadMember(ctx context.Context, q *store.Queries, rec model.BankReconciliation, ref ItemRef) (member, error) {
	cleared := clearedSet(rec)
	var m member
	switch ref.Type {
	case ItemPayment:
		p, err := q.GetPayment(ctx, ref.ID)
		if errors.Is(err, store.ErrNotFound) {
			return m, apperr.NotFound("payment", ref.ID)
		}
		if err != nil {
			return m, err
		}
		if err := apperr.CheckOwner("payment", p.ID, p.OrgID, rec.OrgID); err != nil {
			return m, err
		}
		if p.BankAccountID != rec.BankAccountID {
			return m, apperr.Invalid("id", "payment %s is on another bank account", p.ID)
		}
		m = member{item: paymentItem(p, cleared), reconciliationID: p.ReconciliationID}
	case ItemBankTransaction:
		t, err := q.GetTransaction(ctx, ref.ID)
		if errors.Is(err, store.ErrNotFound) {
			return m, apperr.NotFound("transaction", ref.ID)
		}
		if err != nil {
			return m, err
		}
		if err := apperr.CheckOwner("transaction", t.ID, t.OrgID, rec.OrgID); err != nil {
			return m, err
		}
		if t.BankAccountID != rec.BankAccountID {
			return m, apperr.Invalid("id", "transaction %s is on another bank account", t.ID)
		}
		m = member{item: transactionItem(t, cleared), reconciliationID: t.ReconciliationID}
	default:
		return m, apperr.Invalid("type", "unknown item type %q", ref.Type)
	}

	if m.item.Date.After(rec.StatementDate) {
		return m, apperr.Invalid("id", "%s is dated after the statement date", ref.ID)
	}
	if m.item.IsLocked {
		return m, apperr.Conflict("%s %s is locked", ref.Type, ref.ID)
	}
	if m.reconciliationID != "" && m.reconciliationID != rec.ID {
		return m, apperr.Conflict("%s %s belongs to reconciliation %s", ref.Type, ref.ID, m.reconciliationID)
	}
	return m, nil
}

// mark moves ref in or out of rec's cleared sets and mirrors the flag onto
// the underlying row. The caller saves rec.
func (s *Service) mark(ctx context.Context, q *store.Queries, rec *model.BankReconciliation, ref ItemRef, clear bool) error {
	tag := ""
	if clear {
		tag = rec.ID
	}
	var err error
	switch ref.Type {
	case ItemPayment:
		err = q.SetPaymentReconciliation(ctx, ref.ID, tag)
		if clear {
			rec.ClearedPaymentIDs = addID(rec.ClearedPaymentIDs, ref.ID)
		} else {
			rec.ClearedPaymentIDs = removeID(rec.ClearedPaymentIDs, ref.ID)
		}
	case ItemBankTransaction:
		err = q.SetTransactionReconciliation(ctx, ref.ID, tag, s.now().UTC())
		if clear {
			rec.ClearedTransactionIDs = addID(rec.ClearedTransactionIDs, ref.ID)
		} else {
			rec.ClearedTransactionIDs = removeID(rec.ClearedTransactionIDs, ref.ID)
		}
	}
	if errors.Is(err, store.ErrLocked) {
		return apperr.Conflict("%s %s is locked", ref.Type, ref.ID)
	}
	return err
}

// setCleared applies one clear/unclear inside an open store transaction.
func (s *Service) setCleared(ctx context.Context, q *store.Queries, orgID, recID string, ref ItemRef, clear *bool) (bool, error) {
	rec, err := loadOpen(ctx, q, orgID, recID)
	if err != nil {
		return false, err
	}
	m, err := loadMember(ctx, q, rec, ref)
	if err != nil {
		return false, err
	}
	want := !m.item.IsCleared
	if clear != nil {
		want = *clear
	}
	if want == m.item.IsCleared {
		return want, nil
	}
	if err := s.mark(ctx, q, &rec, ref, want); err != nil {
		return false, err
	}
	if _, _, err := s.recompute(ctx, q, &rec); err != nil {
		return false, err
	}
	return want, save(ctx, q, rec)
}

// ToggleClear flips an item's membership in the session's cleared set and
// returns the new state.
func (s *Service) ToggleClear(ctx context.Context, orgID, recID string, ref ItemRef) (bool, error) {
	var cleared bool
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		var err error
		cleared, err = s.setCleared(ctx, q, orgID, recID, ref, nil)
		return err
	})
	if err != nil {
		return false, err
	}
	s.log.Debug().Str("reconciliation", recID).Str("item", ref.ID).Bool("cleared", cleared).Msg("item toggled")
	return cleared, nil
}

// SetCleared puts an item into (clear) or out of the session's cleared set.
// Setting the state an item already has is a no-op.
func (s *Service) SetCleared(ctx context.Context, orgID, recID string, ref ItemRef, clear bool) error {
	return s.db.WithTx(ctx, func(q *store.Queries) error {
		_, err := s.setCleared(ctx, q, orgID, recID, ref, &clear)
		return err
	})
}

// BulkToggleClear sets many items to the same cleared state. Each item
// commits on its own; failures are counted and the batch continues.
func (s *Service) BulkToggleClear(ctx context.Context, orgID, recID string, refs []ItemRef, clear bool) (BulkResult, error) {
	if _, err := loadOpen(ctx, s.db.Queries(), orgID, recID); err != nil {
		return BulkResult{}, err
	}
	var res BulkResult
	for _, ref := range refs {
		if err := s.SetCleared(ctx, orgID, recID, ref, clear); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ref.ID+": "+err.Error())
			continue
		}
		res.Toggled++
	}
	s.log.Info().
		Str("reconciliation", recID).
		Bool("clear", clear).
		Int("toggled", res.Toggled).
		Int("failed", res.Failed).
		Msg("bulk clear")
	return res, nil
}
