// Package journal posts balanced double-entry journal entries.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// Service provides business logic for journal entries.
type Service struct {
	log zerolog.Logger
	now func() time.Time
}

// NewService creates a journal Service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "journal").Logger(),
		now: time.Now,
	}
}

// EntryRequest holds the parameters of a new journal entry.
type EntryRequest struct {
	OrgID       string
	Date        time.Time
	Description string
	SourceType  model.SourceType
	SourceID    string
	Lines       []model.JournalLine
}

// EntryRef identifies a posted entry.
type EntryRef struct {
	ID                string
	TransactionNumber string
}

// chart adapts a loaded chart of accounts to AccountChecker.
type chart map[string]model.Account

func (c chart) Lookup(accountID string) (model.Account, bool) {
	a, ok := c[accountID]
	return a, ok
}

// CreateJournalEntry validates and posts an entry on the caller's query set,
// so it commits or rolls back with whatever else the caller is doing.
func (s *Service) CreateJournalEntry(ctx context.Context, q *store.Queries, req EntryRequest) (EntryRef, error) {
	if req.OrgID == "" {
		return EntryRef{}, apperr.Invalid("orgId", "organization is required")
	}
	if req.Date.IsZero() {
		return EntryRef{}, apperr.Invalid("date", "entry date is required")
	}
	if req.SourceType == "" || req.SourceID == "" {
		return EntryRef{}, apperr.Invalid("source", "entry source is required")
	}

	accts, err := q.ListAccounts(ctx, req.OrgID)
	if err != nil {
		return EntryRef{}, err
	}
	c := make(chart, len(accts))
	for _, a := range accts {
		c[a.ID] = a
	}

	if verrs := ValidateLines(req.Lines, c); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return EntryRef{}, apperr.Invalid("lines", "%s", strings.Join(msgs, "; "))
	}

	year, month := req.Date.Year(), int(req.Date.Month())
	seq, err := s.NextTransactionSeq(ctx, q, req.OrgID, year, month)
	if err != nil {
		return EntryRef{}, err
	}

	entry := model.JournalEntry{
		ID:                id.New(),
		OrgID:             req.OrgID,
		TransactionNumber: id.FormatTransactionNumber(year, month, seq),
		Date:              req.Date,
		Description:       req.Description,
		SourceType:        req.SourceType,
		SourceID:          req.SourceID,
		CreatedAt:         s.now().UTC(),
	}
	for _, l := range req.Lines {
		l.ID = id.New()
		entry.Lines = append(entry.Lines, l)
	}

	if err := q.InsertJournalEntry(ctx, entry); err != nil {
		return EntryRef{}, fmt.Errorf("posting journal entry: %w", err)
	}

	s.log.Debug().
		Str("org", req.OrgID).
		Str("number", entry.TransactionNumber).
		Str("source", string(req.SourceType)+":"+req.SourceID).
		Msg("journal entry posted")
	return EntryRef{ID: entry.ID, TransactionNumber: entry.TransactionNumber}, nil
}

// NextTransactionSeq returns the next available sequence number for a month.
func (s *Service) NextTransactionSeq(ctx context.Context, q *store.Queries, orgID string, year, month int) (int, error) {
	maxSeq, err := q.MaxTransactionSeq(ctx, orgID, year, month)
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

// EntriesForMonth returns the organization's entries dated in a month.
func (s *Service) EntriesForMonth(ctx context.Context, q *store.Queries, orgID string, year, month int) ([]model.JournalEntry, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	return q.JournalEntriesBetween(ctx, orgID, from, to)
}
