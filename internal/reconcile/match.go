package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cleared-dev/bankrec/internal/actions"
	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/matching"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Pair scoring weights.
const (
	pairBase      = 70
	pairReference = 20
	pairSameDay   = 10
	pairPayee     = 10
	pairMaxScore  = 100
	pairMaxDays   = 3
)

// PairSuggestion proposes pairing an internal payment with a bank line.
type PairSuggestion struct {
	PaymentID     string
	TransactionID string
	Score         int
	Reasons       []string
}

// scorePair scores a payment against a bank transaction. Pairs need equal
// signed amounts dated at most three days apart.
func scorePair(p, t ClearableItem) (int, []string, bool) {
	if !p.SignedAmount.Equal(t.SignedAmount) {
		return 0, nil, false
	}
	days := matching.DaysApart(p.Date, t.Date)
	if days > pairMaxDays {
		return 0, nil, false
	}

	score := pairBase
	reasons := []string{fmt.Sprintf("Amount match within %d days", pairMaxDays)}
	if p.Reference != "" && strings.EqualFold(p.Reference, t.Reference) {
		score += pairReference
		reasons = append(reasons, "Reference match")
	}
	if days == 0 {
		score += pairSameDay
		reasons = append(reasons, "Same date")
	}
	if party := strings.ToLower(strings.TrimSpace(p.Party)); party != "" {
		if strings.Contains(strings.ToLower(t.Party), party) || strings.Contains(strings.ToLower(t.Description), party) {
			score += pairPayee
			reasons = append(reasons, "Payee match")
		}
	}
	if score > pairMaxScore {
		score = pairMaxScore
	}
	return score, reasons, true
}

// pairs scores every uncleared, unlocked payment against every uncleared,
// unlocked bank transaction, best first.
func pairs(items []ClearableItem) []PairSuggestion {
	var payments, txns []ClearableItem
	for _, item := range items {
		if item.IsCleared || item.IsLocked {
			continue
		}
		switch item.Type {
		case ItemPayment:
			payments = append(payments, item)
		case ItemBankTransaction:
			txns = append(txns, item)
		}
	}

	var out []PairSuggestion
	for _, p := range payments {
		for _, t := range txns {
			score, reasons, ok := scorePair(p, t)
			if !ok {
				continue
			}
			out = append(out, PairSuggestion{PaymentID: p.ID, TransactionID: t.ID, Score: score, Reasons: reasons})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// FindMatches proposes payment/bank-transaction pairs among the session's
// uncleared items.
func (s *Service) FindMatches(ctx context.Context, orgID, recID string) ([]PairSuggestion, error) {
	q := s.db.Queries()
	rec, err := loadOpen(ctx, q, orgID, recID)
	if err != nil {
		return nil, err
	}
	items, err := clearableItems(ctx, q, orgID, rec.BankAccountID, rec.StatementDate, rec.ID, clearedSet(rec))
	if err != nil {
		return nil, err
	}
	return pairs(items), nil
}

// MatchTransaction pairs a payment with a bank transaction: both are
// cleared into the session and the transaction is marked MATCHED against
// the payment, atomically.
func (s *Service) MatchTransaction(ctx context.Context, orgID, recID, paymentID, txnID string) error {
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		rec, err := loadOpen(ctx, q, orgID, recID)
		if err != nil {
			return err
		}
		payRef := ItemRef{Type: ItemPayment, ID: paymentID}
		txnRef := ItemRef{Type: ItemBankTransaction, ID: txnID}
		if _, err := loadMember(ctx, q, rec, payRef); err != nil {
			return err
		}
		if _, err := loadMember(ctx, q, rec, txnRef); err != nil {
			return err
		}

		txn, err := q.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if txn.MatchedPaymentID != "" && txn.MatchedPaymentID != paymentID {
			return apperr.Conflict("transaction %s is already matched to payment %s", txnID, txn.MatchedPaymentID)
		}
		p, err := q.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := actions.CheckPaymentPair(ctx, q, txn, p); err != nil {
			return err
		}
		txn.Status = model.TxnMatched
		txn.MatchedPaymentID = paymentID
		txn.ConfidenceScore = matching.MaxScore
		if err := q.UpdateTransactionDecision(ctx, txn, s.now().UTC()); err != nil {
			if errors.Is(err, store.ErrLocked) {
				return apperr.Conflict("transaction %s is locked", txnID)
			}
			return err
		}

		for _, ref := range []ItemRef{payRef, txnRef} {
			if err := s.mark(ctx, q, &rec, ref, true); err != nil {
				return err
			}
		}
		if _, _, err := s.recompute(ctx, q, &rec); err != nil {
			return err
		}
		return save(ctx, q, rec)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("reconciliation", recID).Str("payment", paymentID).Str("txn", txnID).Msg("transaction matched")
	return nil
}

// UnmatchTransaction reverses MatchTransaction, unclearing both sides.
// Refused once the session is finalized or either side is locked.
func (s *Service) UnmatchTransaction(ctx context.Context, orgID, recID, txnID string) error {
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		rec, err := loadOpen(ctx, q, orgID, recID)
		if err != nil {
			return err
		}
		txnRef := ItemRef{Type: ItemBankTransaction, ID: txnID}
		if _, err := loadMember(ctx, q, rec, txnRef); err != nil {
			return err
		}
		txn, err := q.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if txn.MatchedPaymentID == "" {
			return apperr.Invalid("transactionId", "transaction %s is not matched to a payment", txnID)
		}
		payRef := ItemRef{Type: ItemPayment, ID: txn.MatchedPaymentID}
		if _, err := loadMember(ctx, q, rec, payRef); err != nil {
			return err
		}

		txn.Status = model.TxnUnprocessed
		txn.MatchedPaymentID = ""
		txn.ConfidenceScore = 0
		if err := q.UpdateTransactionDecision(ctx, txn, s.now().UTC()); err != nil {
			if errors.Is(err, store.ErrLocked) {
				return apperr.Conflict("transaction %s is locked", txnID)
			}
			return err
		}
		for _, ref := range []ItemRef{payRef, txnRef} {
			if err := s.mark(ctx, q, &rec, ref, false); err != nil {
				return err
			}
		}
		if _, _, err := s.recompute(ctx, q, &rec); err != nil {
			return err
		}
		return save(ctx, q, rec)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("reconciliation", recID).Str("txn", txnID).Msg("transaction unmatched")
	return nil
}

// AutoMatch applies the best suggested pairs scoring at least minScore,
// using each payment and transaction once. Failed pairs are counted.
func (s *Service) AutoMatch(ctx context.Context, orgID, recID string, minScore int) (BulkResult, error) {
	suggestions, err := s.FindMatches(ctx, orgID, recID)
	if err != nil {
		return BulkResult{}, err
	}
	usedPayments := make(map[string]bool)
	usedTxns := make(map[string]bool)
	var res BulkResult
	for _, p := range suggestions {
		if p.Score < minScore || usedPayments[p.PaymentID] || usedTxns[p.TransactionID] {
			continue
		}
		if err := s.MatchTransaction(ctx, orgID, recID, p.PaymentID, p.TransactionID); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, p.PaymentID+"/"+p.TransactionID+": "+err.Error())
			continue
		}
		usedPayments[p.PaymentID] = true
		usedTxns[p.TransactionID] = true
		res.Toggled++
	}
	s.log.Info().Str("reconciliation", recID).Int("matched", res.Toggled).Int("failed", res.Failed).Msg("auto match")
	return res, nil
}
