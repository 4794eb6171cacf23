// Package history persists the capped, time-ordered record of past
// transfers. The collection is mutated only by terminal transfer
// transitions and explicit user deletions; both run as single-writer
// sequential mutations.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound means no entry has the given id.
var ErrNotFound = errors.New("history entry not found")

// Service provides history management.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Append inserts a new entry and enforces the cap in the same transaction,
// so the invariant holds even under a crash between the two statements.
func (s *Service) Append(ctx context.Context, input CreateInput) (*Entry, error) {
	entry := &Entry{
		ID:        uuid.NewString(),
		Name:      input.Name,
		SizeBytes: input.SizeBytes,
		MIMEType:  input.MIMEType,
		Status:    input.Status,
		RetryHref: input.RetryHref,
		CreatedAt: time.Now().UnixMilli(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin history append: %w", err)
	}
	defer tx.Rollback()

	var retry sql.NullString
	if entry.RetryHref != "" {
		retry = sql.NullString{String: entry.RetryHref, Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (id, name, size_bytes, mime_type, status, retry_href, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Name, entry.SizeBytes, entry.MIMEType, string(entry.Status), retry, entry.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY created_at DESC, id LIMIT ?
		)`, MaxEntries,
	); err != nil {
		return nil, fmt.Errorf("evict history overflow: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit history append: %w", err)
	}

	s.logger.Debug().Str("id", entry.ID).Str("status", string(entry.Status)).Str("name", entry.Name).Msg("history entry appended")
	return entry, nil
}

// List returns all entries, newest first.
func (s *Service) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, size_bytes, mime_type, status, retry_href, created_at
		 FROM history ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, MaxEntries)
	for rows.Next() {
		var e Entry
		var status string
		var retry sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.SizeBytes, &e.MIMEType, &status, &retry, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Status = Status(status)
		if retry.Valid {
			e.RetryHref = retry.String
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Delete removes one entry by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes all entries.
func (s *Service) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
