package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/model"
)

// InsertJournalEntry stores an entry and its lines. Callers validate balance.
func (s *Queries) InsertJournalEntry(ctx context.Context, e model.JournalEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO journal_entries (
			id, org_id, transaction_number, date, description, source_type, source_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrgID, e.TransactionNumber, fmtDate(e.Date), e.Description, string(e.SourceType), e.SourceID,
		fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting journal entry %s: %w", e.TransactionNumber, err)
	}
	for _, l := range e.Lines {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO journal_lines (id, entry_id, account_id, side, amount) VALUES (?, ?, ?, ?, ?)`,
			l.ID, e.ID, l.AccountID, string(l.Side), l.Amount)
		if err != nil {
			return fmt.Errorf("inserting journal line for %s: %w", e.TransactionNumber, err)
		}
	}
	return nil
}

// MaxTransactionSeq returns the highest sequence number used in the given
// month, or 0 when the month has no entries yet.
func (s *Queries) MaxTransactionSeq(ctx context.Context, orgID string, year, month int) (int, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT transaction_number FROM journal_entries WHERE org_id = ? AND transaction_number LIKE ?`,
		orgID, id.MonthPrefix(year, month)+"%")
	if err != nil {
		return 0, fmt.Errorf("reading transaction numbers: %w", err)
	}
	defer rows.Close()

	maxSeq := 0
	for rows.Next() {
		var num string
		if err := rows.Scan(&num); err != nil {
			return 0, fmt.Errorf("scanning transaction number: %w", err)
		}
		_, _, seq, err := id.ParseTransactionNumber(num)
		if err != nil {
			continue
		}
		maxSeq = max(maxSeq, seq)
	}
	return maxSeq, rows.Err()
}

const journalEntryColumns = `id, org_id, transaction_number, date, description, source_type, source_id,
	is_locked, locked_at, reconciliation_id, created_at`

func scanJournalEntry(r rowScanner) (model.JournalEntry, error) {
	var e model.JournalEntry
	var date, source, created string
	var lockedAt, reconID sql.NullString
	err := r.Scan(&e.ID, &e.OrgID, &e.TransactionNumber, &date, &e.Description, &source, &e.SourceID,
		&e.IsLocked, &lockedAt, &reconID, &created)
	if err != nil {
		return model.JournalEntry{}, err
	}
	e.SourceType = model.SourceType(source)
	e.ReconciliationID = reconID.String
	if e.Date, err = parseDate(date); err != nil {
		return model.JournalEntry{}, err
	}
	if e.LockedAt, err = parseNullTime(lockedAt); err != nil {
		return model.JournalEntry{}, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return model.JournalEntry{}, err
	}
	return e, nil
}

func (s *Queries) loadLines(ctx context.Context, e *model.JournalEntry) error {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, account_id, side, amount FROM journal_lines WHERE entry_id = ? ORDER BY rowid`, e.ID)
	if err != nil {
		return fmt.Errorf("reading journal lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.JournalLine
		var side string
		if err := rows.Scan(&l.ID, &l.AccountID, &side, &l.Amount); err != nil {
			return fmt.Errorf("scanning journal line: %w", err)
		}
		l.Side = model.Side(side)
		e.Lines = append(e.Lines, l)
	}
	return rows.Err()
}

// GetJournalEntry returns an entry with its lines.
func (s *Queries) GetJournalEntry(ctx context.Context, entryID string) (model.JournalEntry, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+journalEntryColumns+` FROM journal_entries WHERE id = ?`, entryID)
	e, err := scanJournalEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JournalEntry{}, ErrNotFound
	}
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("reading journal entry %s: %w", entryID, err)
	}
	if err := s.loadLines(ctx, &e); err != nil {
		return model.JournalEntry{}, err
	}
	return e, nil
}

// JournalEntriesForSources returns the entries posted for the given source ids,
// without their lines.
func (s *Queries) JournalEntriesForSources(ctx context.Context, orgID string, sourceType model.SourceType, sourceIDs []string) ([]model.JournalEntry, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	args := append([]any{orgID, string(sourceType)}, stringArgs(sourceIDs)...)
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+journalEntryColumns+` FROM journal_entries
		WHERE org_id = ? AND source_type = ? AND source_id IN (`+placeholders(len(sourceIDs))+`)
		ORDER BY transaction_number`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing journal entries: %w", err)
	}
	defer rows.Close()

	var out []model.JournalEntry
	for rows.Next() {
		e, err := scanJournalEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LockJournalEntries locks entries and their lines, stamping the
// reconciliation that locked them.
func (s *Queries) LockJournalEntries(ctx context.Context, ids []string, reconciliationID string, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	in := placeholders(len(ids))
	args := append([]any{fmtTime(now), reconciliationID}, stringArgs(ids)...)
	res, err := s.q.ExecContext(ctx, `
		UPDATE journal_entries SET is_locked = 1, locked_at = ?, reconciliation_id = ?
		WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("locking journal entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting locked entries: %w", err)
	}

	lineArgs := append([]any{reconciliationID}, stringArgs(ids)...)
	if _, err := s.q.ExecContext(ctx, `
		UPDATE journal_lines SET is_locked = 1, reconciliation_id = ?
		WHERE entry_id IN (`+in+`)`, lineArgs...); err != nil {
		return 0, fmt.Errorf("locking journal lines: %w", err)
	}
	return int(n), nil
}

// JournalEntriesBetween returns entries dated in [from, to] with their lines,
// ordered by transaction number.
func (s *Queries) JournalEntriesBetween(ctx context.Context, orgID string, from, to time.Time) ([]model.JournalEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+journalEntryColumns+` FROM journal_entries
		WHERE org_id = ? AND date BETWEEN ? AND ?
		ORDER BY transaction_number`, orgID, fmtDate(from), fmtDate(to))
	if err != nil {
		return nil, fmt.Errorf("listing journal entries: %w", err)
	}

	var out []model.JournalEntry
	for rows.Next() {
		e, err := scanJournalEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Lines are loaded after the cursor closes; the pool holds one connection.
	for i := range out {
		if err := s.loadLines(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
