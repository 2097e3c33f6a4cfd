package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/journal"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// AdjustmentRequest posts a bank-side correction from inside a session.
// FEE, INTEREST and WHT use the magnitude of Amount; OTHER uses its sign,
// negative meaning money out. A zero Date defaults to the statement date.
type AdjustmentRequest struct {
	Type        model.AdjustmentType
	Amount      decimal.Decimal
	AccountID   string
	Date        time.Time
	Description string
	CreatedBy   string
}

// outflow reports whether the adjustment takes money out of the bank.
func (r AdjustmentRequest) outflow() bool {
	switch r.Type {
	case model.AdjustmentFee, model.AdjustmentWHT:
		return true
	case model.AdjustmentInterest:
		return false
	}
	return r.Amount.IsNegative()
}

func (r AdjustmentRequest) validate() error {
	switch r.Type {
	case model.AdjustmentFee, model.AdjustmentInterest, model.AdjustmentWHT, model.AdjustmentOther:
	default:
		return apperr.Invalid("type", "unknown adjustment type %q", r.Type)
	}
	if r.Amount.IsZero() {
		return apperr.Invalid("amount", "adjustment amount must not be zero")
	}
	if r.AccountID == "" {
		return apperr.Invalid("accountId", "offset account is required")
	}
	return nil
}

func defaultDescription(t model.AdjustmentType) string {
	switch t {
	case model.AdjustmentFee:
		return "Bank fee"
	case model.AdjustmentInterest:
		return "Interest earned"
	case model.AdjustmentWHT:
		return "Withholding tax"
	}
	return "Reconciliation adjustment"
}

// CreateAdjustmentEntry posts a two-line journal entry between the bank's
// GL account and req.AccountID, records the matching adjustment payment
// cleared into the session, and appends the adjustment to the session.
// Everything commits together.
func (s *Service) CreateAdjustmentEntry(ctx context.Context, orgID, recID string, req AdjustmentRequest) (model.Adjustment, error) {
	if err := req.validate(); err != nil {
		return model.Adjustment{}, err
	}
	if req.Description == "" {
		req.Description = defaultDescription(req.Type)
	}

	var adj model.Adjustment
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		rec, err := loadOpen(ctx, q, orgID, recID)
		if err != nil {
			return err
		}
		date := req.Date
		if date.IsZero() {
			date = rec.StatementDate
		}
		if date.After(rec.StatementDate) {
			return apperr.Invalid("date", "adjustment is dated after the statement date")
		}
		bank, err := accounts.LookupBankAccount(ctx, q, orgID, rec.BankAccountID)
		if err != nil {
			return err
		}

		amount := req.Amount.Abs()
		bankSide, offsetSide := model.Debit, model.Credit
		direction := model.PaymentReceived
		if req.outflow() {
			bankSide, offsetSide = model.Credit, model.Debit
			direction = model.PaymentMade
		}
		ref, err := s.journal.CreateJournalEntry(ctx, q, journal.EntryRequest{
			OrgID:       orgID,
			Date:        date,
			Description: req.Description,
			SourceType:  model.SourceReconciliation,
			SourceID:    rec.ID,
			Lines: []model.JournalLine{
				{AccountID: req.AccountID, Side: offsetSide, Amount: amount},
				{AccountID: bank.GLAccountID, Side: bankSide, Amount: amount},
			},
		})
		if err != nil {
			return err
		}

		now := s.now().UTC()
		payment := model.Payment{
			ID:            id.New(),
			OrgID:         orgID,
			BankAccountID: bank.ID,
			Date:          date,
			Amount:        amount,
			Direction:     direction,
			PartyName:     req.Description,
			Reference:     ref.TransactionNumber,
			Source:        model.PaymentSourceAdjustment,
			CreatedAt:     now,
		}
		if err := q.InsertPayment(ctx, payment); err != nil {
			return err
		}
		if err := s.mark(ctx, q, &rec, ItemRef{Type: ItemPayment, ID: payment.ID}, true); err != nil {
			return err
		}

		signed := amount
		if req.outflow() {
			signed = amount.Neg()
		}
		adj = model.Adjustment{
			ID:                id.New(),
			Type:              req.Type,
			Amount:            signed,
			AccountID:         req.AccountID,
			Date:              date,
			Description:       req.Description,
			JournalEntryID:    ref.ID,
			TransactionNumber: ref.TransactionNumber,
			PaymentID:         payment.ID,
			CreatedBy:         req.CreatedBy,
			CreatedAt:         now,
		}
		rec.Adjustments = append(rec.Adjustments, adj)
		if _, _, err := s.recompute(ctx, q, &rec); err != nil {
			return err
		}
		return save(ctx, q, rec)
	})
	if err != nil {
		return model.Adjustment{}, err
	}
	s.log.Info().
		Str("reconciliation", recID).
		Str("type", string(adj.Type)).
		Str("amount", adj.Amount.StringFixed(2)).
		Str("number", adj.TransactionNumber).
		Msg("adjustment posted")
	return adj, nil
}
