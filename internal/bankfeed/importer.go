// Package bankfeed imports bank statement lines as deduplicated bank
// transactions grouped into feeds.
package bankfeed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/bankrec/internal/accounts"
	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Importer turns statement lines into bank transactions.
type Importer struct {
	db  *store.DB
	log zerolog.Logger
	now func() time.Time
}

// NewImporter creates an Importer.
func NewImporter(db *store.DB, log zerolog.Logger) *Importer {
	return &Importer{
		db:  db,
		log: log.With().Str("service", "bankfeed").Logger(),
		now: time.Now,
	}
}

// ImportRequest describes one import batch.
type ImportRequest struct {
	BankAccountID string
	Name          string
	Type          model.FeedType
	Metadata      map[string]string
	Lines         []model.StatementLine
}

// ImportResult summarizes an import.
type ImportResult struct {
	Feed     model.BankFeed
	Imported int
	Skipped  int
	Total    int
}

// Import records a feed and inserts every line whose duplicate hash is new
// to the organization. Re-importing the same lines imports nothing.
func (im *Importer) Import(ctx context.Context, orgID string, req ImportRequest) (ImportResult, error) {
	for i, l := range req.Lines {
		if l.Date.IsZero() {
			return ImportResult{}, apperr.Invalid("lines", "line %d has no date", i+1)
		}
		if strings.TrimSpace(l.Description) == "" {
			return ImportResult{}, apperr.Invalid("lines", "line %d has no description", i+1)
		}
	}
	if req.Type == "" {
		req.Type = model.FeedTypeCSV
	}
	if req.Metadata == nil {
		req.Metadata = map[string]string{}
	}

	now := im.now().UTC()
	feed := model.BankFeed{
		ID:            id.New(),
		OrgID:         orgID,
		BankAccountID: req.BankAccountID,
		Name:          req.Name,
		Type:          req.Type,
		Status:        model.FeedStatusActive,
		Metadata:      req.Metadata,
		CreatedAt:     now,
	}
	if feed.Name == "" {
		feed.Name = "Import " + now.Format("2006-01-02 15:04")
	}
	result := ImportResult{Total: len(req.Lines)}

	err := im.db.WithTx(ctx, func(q *store.Queries) error {
		if _, err := accounts.LookupBankAccount(ctx, q, orgID, req.BankAccountID); err != nil {
			return err
		}
		if err := q.InsertFeed(ctx, feed); err != nil {
			return err
		}

		seen := make(map[string]bool, len(req.Lines))
		for _, l := range req.Lines {
			hash := DuplicateHash(l.Date, l.Amount, l.Description)
			if seen[hash] {
				result.Skipped++
				continue
			}
			seen[hash] = true

			exists, err := q.HashExists(ctx, orgID, hash)
			if err != nil {
				return err
			}
			if exists {
				result.Skipped++
				continue
			}

			txn := model.BankTransaction{
				ID:                    id.New(),
				OrgID:                 orgID,
				FeedID:                feed.ID,
				BankAccountID:         req.BankAccountID,
				Date:                  l.Date,
				Amount:                l.Amount,
				Description:           l.Description,
				NormalizedDescription: NormalizeDescription(l.Description),
				Payee:                 strings.TrimSpace(l.Payee),
				Reference:             strings.TrimSpace(l.Reference),
				ExternalID:            l.ExternalID,
				DuplicateHash:         hash,
				Status:                model.TxnUnprocessed,
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			if err := q.InsertTransaction(ctx, txn); err != nil {
				return err
			}
			result.Imported++
		}

		if err := q.UpdateFeedStatus(ctx, feed.ID, model.FeedStatusCompleted, now); err != nil {
			return err
		}
		feed.Status = model.FeedStatusCompleted
		feed.LastSyncAt = &now
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	result.Feed = feed
	im.log.Info().
		Str("org", orgID).
		Str("feed", feed.ID).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("total", result.Total).
		Msg("bank feed imported")
	return result, nil
}

// GetFeed returns a feed owned by orgID.
func (im *Importer) GetFeed(ctx context.Context, orgID, feedID string) (model.BankFeed, error) {
	f, err := im.db.Queries().GetFeed(ctx, feedID)
	if errors.Is(err, store.ErrNotFound) {
		return model.BankFeed{}, apperr.NotFound("feed", feedID)
	}
	if err != nil {
		return model.BankFeed{}, err
	}
	if err := apperr.CheckOwner("feed", feedID, f.OrgID, orgID); err != nil {
		return model.BankFeed{}, err
	}
	return f, nil
}

// ListFeeds returns the organization's feeds, newest first. An empty
// bankAccountID lists every account.
func (im *Importer) ListFeeds(ctx context.Context, orgID, bankAccountID string) ([]model.BankFeed, error) {
	return im.db.Queries().ListFeeds(ctx, orgID, bankAccountID)
}

// ListTransactions returns the organization's transactions matching f.
func (im *Importer) ListTransactions(ctx context.Context, orgID string, f store.TransactionFilter) ([]model.BankTransaction, error) {
	return im.db.Queries().ListTransactions(ctx, orgID, f)
}

// DeleteFeed removes a feed and its transactions. Feeds holding reconciled
// or locked transactions cannot be deleted.
func (im *Importer) DeleteFeed(ctx context.Context, orgID, feedID string) (int, error) {
	var removed int
	err := im.db.WithTx(ctx, func(q *store.Queries) error {
		f, err := q.GetFeed(ctx, feedID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("feed", feedID)
		}
		if err != nil {
			return err
		}
		if err := apperr.CheckOwner("feed", feedID, f.OrgID, orgID); err != nil {
			return err
		}
		frozen, err := q.CountFrozenInFeed(ctx, feedID)
		if err != nil {
			return err
		}
		if frozen > 0 {
			return apperr.Conflict("feed %s has %d reconciled or locked transactions", feedID, frozen)
		}
		removed, err = q.DeleteFeed(ctx, feedID)
		return err
	})
	if err != nil {
		return 0, err
	}
	im.log.Info().Str("org", orgID).Str("feed", feedID).Int("transactions", removed).Msg("feed deleted")
	return removed, nil
}
