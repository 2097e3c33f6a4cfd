package reconcile

import (
	"context"
	"time"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Finalize locks a balanced session. The gap is recomputed from the store
// inside the same transaction; an unbalanced session returns a BalanceError
// and nothing changes. On success every cleared payment and transaction is
// locked, together with the journal entries posted for them and for the
// session's adjustments, and the bank account's reconciled checkpoint
// moves to the statement.
func (s *Service) Finalize(ctx context.Context, orgID, recID, actorID string) (model.BankReconciliation, error) {
	var rec model.BankReconciliation
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		var err error
		rec, err = loadOpen(ctx, q, orgID, recID)
		if err != nil {
			return err
		}
		bank, err := accounts.LookupBankAccount(ctx, q, orgID, rec.BankAccountID)
		if err != nil {
			return err
		}
		items, gap, err := s.recompute(ctx, q, &rec)
		if err != nil {
			return err
		}
		if !gap.IsBalanced {
			return apperr.Unbalanced(gap.Difference)
		}

		now := s.now().UTC()
		if _, err := q.LockPayments(ctx, rec.ClearedPaymentIDs, now); err != nil {
			return err
		}
		if _, err := q.LockTransactions(ctx, rec.ClearedTransactionIDs, now); err != nil {
			return err
		}

		entryIDs, err := entriesToLock(ctx, q, rec)
		if err != nil {
			return err
		}
		if _, err := q.LockJournalEntries(ctx, entryIDs, rec.ID, now); err != nil {
			return err
		}
		if err := q.UpdateBankAccountCheckpoint(ctx, bank.ID, rec.StatementDate, rec.StatementBalance); err != nil {
			return err
		}

		rec.AuditReport = buildReport(rec, bank, items, gap, entryIDs, actorID, now)
		rec.Status = model.ReconFinalized
		rec.FinalizedAt = &now
		rec.FinalizedBy = actorID
		rec.UpdatedAt = now
		return save(ctx, q, rec)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("reconciliation", recID).Msg("finalize refused")
		return model.BankReconciliation{}, err
	}
	s.log.Info().
		Str("org", orgID).
		Str("reconciliation", rec.ID).
		Str("actor", actorID).
		Int("payments", len(rec.ClearedPaymentIDs)).
		Int("transactions", len(rec.ClearedTransactionIDs)).
		Msg("reconciliation finalized")
	return rec, nil
}

// entriesToLock returns the journal entries posted for the cleared payments
// and for the session itself.
func entriesToLock(ctx context.Context, q *store.Queries, rec model.BankReconciliation) ([]string, error) {
	byPayment, err := q.JournalEntriesForSources(ctx, rec.OrgID, model.SourcePayment, rec.ClearedPaymentIDs)
	if err != nil {
		return nil, err
	}
	bySession, err := q.JournalEntriesForSources(ctx, rec.OrgID, model.SourceReconciliation, []string{rec.ID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(byPayment)+len(bySession))
	for _, e := range append(byPayment, bySession...) {
		ids = addID(ids, e.ID)
	}
	return ids, nil
}

func buildReport(rec model.BankReconciliation, bank model.BankAccount, items []ClearableItem, gap Gap, entryIDs []string, actorID string, now time.Time) *model.AuditReport {
	report := &model.AuditReport{
		ReconciliationID:         rec.ID,
		OrgID:                    rec.OrgID,
		BankAccountID:            bank.ID,
		BankAccountName:          bank.Name,
		StatementDate:            rec.StatementDate,
		OpeningBalance:           rec.OpeningBalance,
		StatementBalance:         rec.StatementBalance,
		CalculatedBalance:        gap.CalculatedBalance,
		Difference:               gap.Difference,
		ClearedDepositCount:      gap.ClearedDepositCount,
		ClearedDepositTotal:      gap.ClearedDeposits,
		ClearedWithdrawalCount:   gap.ClearedWithdrawalCount,
		ClearedWithdrawalTotal:   gap.ClearedWithdrawals,
		UnclearedDepositTotal:    gap.UnclearedDeposits,
		UnclearedWithdrawalTotal: gap.UnclearedWithdrawals,
		Items:                    []model.AuditItem{},
		Adjustments:              rec.Adjustments,
		LockedJournalEntryIDs:    entryIDs,
		GeneratedBy:              actorID,
		GeneratedAt:              now,
	}
	if report.Adjustments == nil {
		report.Adjustments = []model.Adjustment{}
	}
	for _, item := range items {
		if !item.IsCleared {
			continue
		}
		report.Items = append(report.Items, model.AuditItem{
			ID:          item.ID,
			Type:        string(item.Type),
			Date:        item.Date,
			Description: item.Description,
			Reference:   item.Reference,
			Amount:      item.SignedAmount,
			Category:    string(item.Category),
		})
	}
	return report
}
