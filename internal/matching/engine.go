// Package matching suggests invoices, bills and payments that explain an
// unprocessed bank transaction.
package matching

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

const (
	// WindowDays bounds how far a candidate's date may be from the transaction's.
	WindowDays = 5
	// MaxSuggestions is the number of suggestions returned per transaction.
	MaxSuggestions = 5
	// DefaultConcurrency is the batch fan-out when none is configured.
	DefaultConcurrency = 10
)

// Suggestion is one scored candidate.
type Suggestion struct {
	Type      CandidateType
	ID        string
	Reference string
	PartyName string
	Date      time.Time
	Amount    decimal.Decimal
	Score     int
	Reasons   []string
}

// BatchResult holds the suggestions for every transaction of a feed.
type BatchResult struct {
	Suggestions map[string][]Suggestion
	Failed      int
}

// Engine finds match suggestions.
type Engine struct {
	db          *store.DB
	log         zerolog.Logger
	concurrency int
	now         func() time.Time
}

// NewEngine creates an Engine. concurrency <= 0 uses DefaultConcurrency.
func NewEngine(db *store.DB, log zerolog.Logger, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{
		db:          db,
		log:         log.With().Str("service", "matching").Logger(),
		concurrency: concurrency,
		now:         time.Now,
	}
}

func (e *Engine) transaction(ctx context.Context, orgID, txnID string) (model.BankTransaction, error) {
	txn, err := e.db.Queries().GetTransaction(ctx, txnID)
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

// Suggest returns up to MaxSuggestions candidates for one unprocessed
// transaction, best first.
func (e *Engine) Suggest(ctx context.Context, orgID, txnID string) ([]Suggestion, error) {
	txn, err := e.transaction(ctx, orgID, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Frozen() {
		return nil, apperr.Conflict("transaction %s is reconciled or locked", txnID)
	}
	if txn.Status != model.TxnUnprocessed {
		return nil, apperr.Conflict("transaction %s is %s", txnID, txn.Status)
	}
	return e.suggest(ctx, txn)
}

func (e *Engine) suggest(ctx context.Context, txn model.BankTransaction) ([]Suggestion, error) {
	cands, err := e.candidates(ctx, txn)
	if err != nil {
		return nil, err
	}
	return Rank(txn, cands), nil
}

// Rank scores candidates against txn and returns the best MaxSuggestions.
// Ties go to the smaller amount gap, then the earlier date, then the id.
func Rank(txn model.BankTransaction, cands []Candidate) []Suggestion {
	out := make([]Suggestion, 0, len(cands))
	for _, c := range cands {
		score, reasons, ok := Score(txn, c)
		if !ok {
			continue
		}
		out = append(out, Suggestion{
			Type:      c.Type,
			ID:        c.ID,
			Reference: c.Reference,
			PartyName: c.PartyName,
			Date:      c.Date,
			Amount:    c.Amount,
			Score:     score,
			Reasons:   reasons,
		})
	}

	amt := txn.Amount.Abs()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ga, gb := amt.Sub(a.Amount).Abs(), amt.Sub(b.Amount).Abs()
		if !ga.Equal(gb) {
			return ga.LessThan(gb)
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

func (e *Engine) candidates(ctx context.Context, txn model.BankTransaction) ([]Candidate, error) {
	q := e.db.Queries()
	from := txn.Date.AddDate(0, 0, -WindowDays)
	to := txn.Date.AddDate(0, 0, WindowDays)

	var out []Candidate
	if txn.IsCredit() {
		invoices, err := q.OpenInvoicesDatedBetween(ctx, txn.OrgID, from, to)
		if err != nil {
			return nil, err
		}
		for _, inv := range invoices {
			out = append(out, Candidate{
				Type:      CandidateInvoice,
				ID:        inv.ID,
				Reference: inv.Number,
				PartyName: inv.CustomerName,
				Date:      inv.Date,
				Amount:    inv.AmountDue,
			})
		}
	} else {
		bills, err := q.OpenBillsDatedBetween(ctx, txn.OrgID, from, to)
		if err != nil {
			return nil, err
		}
		for _, b := range bills {
			out = append(out, Candidate{
				Type:      CandidateBill,
				ID:        b.ID,
				Reference: b.Number,
				PartyName: b.VendorName,
				Date:      b.Date,
				Amount:    b.AmountDue,
			})
		}
	}

	payments, err := q.UnclearedPaymentsBetween(ctx, txn.OrgID, txn.BankAccountID, from, to)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		out = append(out, Candidate{
			Type:      CandidatePayment,
			ID:        p.ID,
			Reference: p.Reference,
			PartyName: p.PartyName,
			Date:      p.Date,
			Amount:    p.Amount,
		})
	}
	return out, nil
}

// SuggestForFeed computes suggestions for every unprocessed transaction of
// a feed with bounded concurrency. Each transaction's best score is stored
// as its confidence. Per-transaction failures are counted, not returned.
func (e *Engine) SuggestForFeed(ctx context.Context, orgID, feedID string) (BatchResult, error) {
	q := e.db.Queries()
	feed, err := q.GetFeed(ctx, feedID)
	if errors.Is(err, store.ErrNotFound) {
		return BatchResult{}, apperr.NotFound("feed", feedID)
	}
	if err != nil {
		return BatchResult{}, err
	}
	if err := apperr.CheckOwner("feed", feedID, feed.OrgID, orgID); err != nil {
		return BatchResult{}, err
	}

	txns, err := q.ListTransactions(ctx, orgID, store.TransactionFilter{FeedID: feedID, Status: model.TxnUnprocessed})
	if err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{Suggestions: make(map[string][]Suggestion, len(txns))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, txn := range txns {
		if txn.Frozen() {
			continue
		}
		txn := txn
		g.Go(func() error {
			sugg, err := e.suggest(gctx, txn)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				e.log.Warn().Err(err).Str("txn", txn.ID).Msg("suggestion failed")
				return nil
			}
			res.Suggestions[txn.ID] = sugg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	now := e.now().UTC()
	for txnID, sugg := range res.Suggestions {
		best := 0
		if len(sugg) > 0 {
			best = sugg[0].Score
		}
		if err := q.SetSuggestedConfidence(ctx, txnID, best, now); err != nil {
			res.Failed++
			e.log.Warn().Err(err).Str("txn", txnID).Msg("storing confidence failed")
		}
	}

	e.log.Info().
		Str("org", orgID).
		Str("feed", feedID).
		Int("transactions", len(res.Suggestions)).
		Int("failed", res.Failed).
		Msg("suggestions computed")
	return res, nil
}
