package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/bankrec/internal/model"
)

// InsertFeed stores a new import batch.
func (s *Queries) InsertFeed(ctx context.Context, f model.BankFeed) error {
	meta, err := marshalJSON(f.Metadata)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO bank_feeds (id, org_id, bank_account_id, name, type, status, last_sync_at, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OrgID, f.BankAccountID, f.Name, string(f.Type), string(f.Status), nullTime(f.LastSyncAt), meta, fmtTime(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting feed %s: %w", f.ID, err)
	}
	return nil
}

const feedColumns = `id, org_id, bank_account_id, name, type, status, last_sync_at, metadata, created_at`

func scanFeed(r rowScanner) (model.BankFeed, error) {
	var f model.BankFeed
	var typ, status, meta, created string
	var lastSync sql.NullString
	if err := r.Scan(&f.ID, &f.OrgID, &f.BankAccountID, &f.Name, &typ, &status, &lastSync, &meta, &created); err != nil {
		return model.BankFeed{}, err
	}
	f.Type = model.FeedType(typ)
	f.Status = model.FeedStatus(status)

	var err error
	if f.LastSyncAt, err = parseNullTime(lastSync); err != nil {
		return model.BankFeed{}, err
	}
	if f.CreatedAt, err = parseTime(created); err != nil {
		return model.BankFeed{}, err
	}
	if err := unmarshalJSON(meta, &f.Metadata); err != nil {
		return model.BankFeed{}, err
	}
	return f, nil
}

// GetFeed returns a feed by id.
func (s *Queries) GetFeed(ctx context.Context, feedID string) (model.BankFeed, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM bank_feeds WHERE id = ?`, feedID)
	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankFeed{}, ErrNotFound
	}
	if err != nil {
		return model.BankFeed{}, fmt.Errorf("reading feed %s: %w", feedID, err)
	}
	return f, nil
}

// ListFeeds returns an organization's feeds, newest first. An empty
// bankAccountID lists feeds of every account.
func (s *Queries) ListFeeds(ctx context.Context, orgID, bankAccountID string) ([]model.BankFeed, error) {
	query := `SELECT ` + feedColumns + ` FROM bank_feeds WHERE org_id = ?`
	args := []any{orgID}
	if bankAccountID != "" {
		query += ` AND bank_account_id = ?`
		args = append(args, bankAccountID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	defer rows.Close()

	var out []model.BankFeed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning feed: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFeedStatus sets a feed's status and last sync time.
func (s *Queries) UpdateFeedStatus(ctx context.Context, feedID string, status model.FeedStatus, syncedAt time.Time) error {
	res, err := s.q.ExecContext(ctx, `UPDATE bank_feeds SET status = ?, last_sync_at = ? WHERE id = ?`,
		string(status), fmtTime(syncedAt), feedID)
	if err != nil {
		return fmt.Errorf("updating feed %s: %w", feedID, err)
	}
	return expectOne(res)
}

// CountFrozenInFeed counts a feed's transactions that are locked or reconciled.
func (s *Queries) CountFrozenInFeed(ctx context.Context, feedID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bank_transactions WHERE feed_id = ? AND (is_locked = 1 OR is_reconciled = 1)`, feedID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting frozen transactions: %w", err)
	}
	return n, nil
}

// DeleteFeed removes a feed and its transactions. Locked rows are never
// deleted: the statement fails if any remain.
func (s *Queries) DeleteFeed(ctx context.Context, feedID string) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM bank_transactions WHERE feed_id = ? AND is_locked = 0 AND is_reconciled = 0`, feedID)
	if err != nil {
		return 0, fmt.Errorf("deleting feed transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM bank_feeds WHERE id = ?`, feedID); err != nil {
		return 0, fmt.Errorf("deleting feed %s: %w", feedID, err)
	}
	return int(n), nil
}
