// Package actions applies user decisions to bank transactions: matching,
// categorizing, ignoring and undoing.
package actions

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Type is the kind of decision applied to a transaction.
type Type string

const (
	MatchInvoice  Type = "MATCH_INVOICE"
	MatchBill     Type = "MATCH_BILL"
	MatchPayment  Type = "MATCH_PAYMENT"
	MatchTransfer Type = "MATCH_TRANSFER"
	CreateExpense Type = "CREATE_EXPENSE"
	Ignore        Type = "IGNORE"
)

// ExplicitConfidence is the score of a user-confirmed decision.
const ExplicitConfidence = 100

var overpayTolerance = decimal.RequireFromString("0.01")

// Action is a decision about one transaction. Only the fields its Type
// needs are read.
type Action struct {
	TransactionID     string
	Type              Type
	InvoiceID         string
	BillID            string
	PaymentID         string
	TransferAccountID string
	CategoryAccountID string
	Payee             string
}

// BatchResult counts a batch approval's outcome.
type BatchResult struct {
	Approved int
	Errors   int
}

// Applier applies actions.
type Applier struct {
	db  *store.DB
	log zerolog.Logger
	now func() time.Time
}

// NewApplier creates an Applier.
func NewApplier(db *store.DB, log zerolog.Logger) *Applier {
	return &Applier{
		db:  db,
		log: log.With().Str("service", "actions").Logger(),
		now: time.Now,
	}
}

func loadTransaction(ctx context.Context, q *store.Queries, orgID, txnID string) (model.BankTransaction, error) {
	txn, err := q.GetTransaction(ctx, txnID)
	if errors.Is(err, store.ErrNotFound) {
		return model.BankTransaction{}, apperr.NotFound("transaction", txnID)
	}
	if err != nil {
		return model.BankTransaction{}, err
	}
	if err := apperr.CheckOwner("transaction", txnID, txn.OrgID, orgID); err != nil {
		return model.BankTransaction{}, err
	}
	return txn, nil
}

// Apply validates an action and records its outcome on the transaction.
// The transaction must be UNPROCESSED; undo an earlier decision first.
func (a *Applier) Apply(ctx context.Context, orgID string, act Action) (model.BankTransaction, error) {
	var out model.BankTransaction
	err := a.db.WithTx(ctx, func(q *store.Queries) error {
		txn, err := loadTransaction(ctx, q, orgID, act.TransactionID)
		if err != nil {
			return err
		}
		if txn.Frozen() {
			return apperr.Conflict("transaction %s is reconciled or locked", txn.ID)
		}
		if txn.Status != model.TxnUnprocessed {
			return apperr.Conflict("transaction %s is already %s; undo it first", txn.ID, txn.Status)
		}
		if err := a.decide(ctx, q, orgID, &txn, act); err != nil {
			return err
		}
		if err := q.UpdateTransactionDecision(ctx, txn, a.now().UTC()); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return model.BankTransaction{}, err
	}
	a.log.Debug().Str("org", orgID).Str("txn", out.ID).Str("action", string(act.Type)).Msg("action applied")
	return out, nil
}

func (a *Applier) decide(ctx context.Context, q *store.Queries, orgID string, txn *model.BankTransaction, act Action) error {
	switch act.Type {
	case MatchInvoice:
		if act.InvoiceID == "" {
			return apperr.Invalid("invoiceId", "invoice is required for %s", act.Type)
		}
		if !txn.IsCredit() {
			return apperr.Invalid("invoiceId", "only deposits can be matched to invoices")
		}
		inv, err := q.GetInvoice(ctx, act.InvoiceID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("invoice", act.InvoiceID)
		}
		if err != nil {
			return err
		}
		if err := apperr.CheckOwner("invoice", inv.ID, inv.OrgID, orgID); err != nil {
			return err
		}
		if err := checkOpenBalance("invoice", txn.Amount, inv.AmountDue); err != nil {
			return err
		}
		txn.MatchedInvoiceID = inv.ID
		txn.Status = model.TxnMatched
		txn.ConfidenceScore = ExplicitConfidence

	case MatchBill:
		if act.BillID == "" {
			return apperr.Invalid("billId", "bill is required for %s", act.Type)
		}
		if txn.IsCredit() {
			return apperr.Invalid("billId", "only withdrawals can be matched to bills")
		}
		bill, err := q.GetBill(ctx, act.BillID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("bill", act.BillID)
		}
		if err != nil {
			return err
		}
		if err := apperr.CheckOwner("bill", bill.ID, bill.OrgID, orgID); err != nil {
			return err
		}
		if err := checkOpenBalance("bill", txn.Amount, bill.AmountDue); err != nil {
			return err
		}
		txn.MatchedBillID = bill.ID
		txn.Status = model.TxnMatched
		txn.ConfidenceScore = ExplicitConfidence

	case MatchPayment:
		if act.PaymentID == "" {
			return apperr.Invalid("paymentId", "payment is required for %s", act.Type)
		}
		p, err := q.GetPayment(ctx, act.PaymentID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("payment", act.PaymentID)
		}
		if err != nil {
			return err
		}
		if err := apperr.CheckOwner("payment", p.ID, p.OrgID, orgID); err != nil {
			return err
		}
		if p.BankAccountID != txn.BankAccountID {
			return apperr.Invalid("paymentId", "payment %s is on another bank account", p.ID)
		}
		if p.IsLocked || p.IsReconciled {
			return apperr.Conflict("payment %s is reconciled or locked", p.ID)
		}
		if err := CheckPaymentPair(ctx, q, *txn, p); err != nil {
			return err
		}
		txn.MatchedPaymentID = p.ID
		txn.Status = model.TxnMatched
		txn.ConfidenceScore = ExplicitConfidence

	case MatchTransfer:
		if act.TransferAccountID == "" {
			return apperr.Invalid("transferAccountId", "target bank account is required for %s", act.Type)
		}
		if act.TransferAccountID == txn.BankAccountID {
			return apperr.Invalid("transferAccountId", "cannot transfer to the same bank account")
		}
		if _, err := accounts.LookupBankAccount(ctx, q, orgID, act.TransferAccountID); err != nil {
			return err
		}
		txn.MatchedTransferID = act.TransferAccountID
		txn.Status = model.TxnMatched
		txn.ConfidenceScore = ExplicitConfidence

	case CreateExpense:
		if act.CategoryAccountID == "" {
			return apperr.Invalid("categoryAccountId", "category account is required for %s", act.Type)
		}
		if _, err := accounts.Lookup(ctx, q, orgID, act.CategoryAccountID); err != nil {
			return err
		}
		txn.CategoryAccountID = act.CategoryAccountID
		if act.Payee != "" {
			txn.Payee = act.Payee
		}
		txn.Status = model.TxnCreated
		txn.ConfidenceScore = ExplicitConfidence

	case Ignore:
		txn.Status = model.TxnIgnored

	default:
		return apperr.Invalid("type", "unknown action %q", act.Type)
	}
	return nil
}

// CheckPaymentPair rejects pairing txn with p unless both move money the
// same way, their amounts agree within a cent and no other transaction
// already holds p.
func CheckPaymentPair(ctx context.Context, q *store.Queries, txn model.BankTransaction, p model.Payment) error {
	signed := p.SignedAmount()
	if signed.IsNegative() != txn.Amount.IsNegative() {
		return apperr.Invalid("paymentId", "payment %s moves money the other way from transaction %s", p.ID, txn.ID)
	}
	if signed.Sub(txn.Amount).Abs().GreaterThan(overpayTolerance) {
		return apperr.Invalid("paymentId", "payment %s amount %s does not match transaction amount %s",
			p.ID, signed.StringFixed(2), txn.Amount.StringFixed(2))
	}
	other, err := q.TransactionMatchedToPayment(ctx, p.ID, txn.ID)
	if err == nil {
		return apperr.Conflict("payment %s is already matched to transaction %s", p.ID, other)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func checkOpenBalance(entity string, amount, due decimal.Decimal) error {
	if amount.Abs().GreaterThan(due.Add(overpayTolerance)) {
		return apperr.Invalid("amount", "%s exceeds the %s's open balance of %s",
			amount.Abs().StringFixed(2), entity, due.StringFixed(2))
	}
	return nil
}

// Undo returns a transaction to UNPROCESSED, clearing every decision on it.
// Reconciled or locked transactions cannot be undone.
func (a *Applier) Undo(ctx context.Context, orgID, txnID string) (model.BankTransaction, error) {
	var out model.BankTransaction
	err := a.db.WithTx(ctx, func(q *store.Queries) error {
		txn, err := loadTransaction(ctx, q, orgID, txnID)
		if err != nil {
			return err
		}
		if txn.Frozen() {
			return apperr.Conflict("transaction %s is reconciled or locked", txn.ID)
		}
		txn.Status = model.TxnUnprocessed
		txn.ConfidenceScore = 0
		txn.MatchedInvoiceID = ""
		txn.MatchedBillID = ""
		txn.MatchedPaymentID = ""
		txn.MatchedTransferID = ""
		txn.CategoryAccountID = ""
		txn.AppliedRuleID = ""
		if err := q.UpdateTransactionDecision(ctx, txn, a.now().UTC()); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return model.BankTransaction{}, err
	}
	a.log.Debug().Str("org", orgID).Str("txn", txnID).Msg("action undone")
	return out, nil
}

// BatchApprove categorizes many transactions as expenses. An empty
// categoryAccountID keeps each transaction's suggested category; rule
// categorizations already in CREATED are confirmed in place. Failures are
// counted and the batch continues.
func (a *Applier) BatchApprove(ctx context.Context, orgID string, txnIDs []string, categoryAccountID string) BatchResult {
	var res BatchResult
	for _, txnID := range txnIDs {
		if err := a.approve(ctx, orgID, txnID, categoryAccountID); err != nil {
			res.Errors++
			a.log.Warn().Err(err).Str("txn", txnID).Msg("approval failed")
			continue
		}
		res.Approved++
	}
	a.log.Info().Str("org", orgID).Int("approved", res.Approved).Int("errors", res.Errors).Msg("batch approved")
	return res
}

func (a *Applier) approve(ctx context.Context, orgID, txnID, categoryAccountID string) error {
	txn, err := loadTransaction(ctx, a.db.Queries(), orgID, txnID)
	if err != nil {
		return err
	}
	category := categoryAccountID
	if category == "" {
		category = txn.CategoryAccountID
	}

	if txn.Status == model.TxnCreated && !txn.Frozen() && (categoryAccountID == "" || categoryAccountID == txn.CategoryAccountID) {
		return a.db.WithTx(ctx, func(q *store.Queries) error {
			txn.ConfidenceScore = ExplicitConfidence
			return q.UpdateTransactionDecision(ctx, txn, a.now().UTC())
		})
	}
	_, err = a.Apply(ctx, orgID, Action{TransactionID: txnID, Type: CreateExpense, CategoryAccountID: category})
	return err
}
