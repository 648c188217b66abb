package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vijay-prabhu/gmailconn/internal/email"
)

const messageColumns = `
	id, thread_id, subject, from_address, from_name, to_addresses,
	date, snippet, body, labels, headers, is_read, fetched_at`

// PutMessage inserts or replaces a cached message
func (db *DB) PutMessage(ctx context.Context, e *email.Email) error {
	to, err := marshalJSON(e.To)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}
	labels, err := marshalJSON(e.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	headers, err := marshalJSON(e.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.ThreadID, NullString(e.Subject), e.From.Email, NullString(e.From.Name), to,
		e.Date.UTC(), NullString(e.Snippet), NullString(e.Body), labels, headers, e.IsRead,
		db.now().UTC(),
	)
	return err
}

// GetMessage returns the cached message, or nil if it is not cached
func (db *DB) GetMessage(ctx context.Context, id string) (*email.Email, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)

	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m.Email, nil
}

// ListMessages returns cached messages, newest first. A limit of 0 means all.
func (db *DB) ListMessages(ctx context.Context, limit int) ([]CachedMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY date DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []CachedMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}

	return messages, rows.Err()
}

// CountMessages returns the number of cached messages
func (db *DB) CountMessages(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// DeleteMessage removes a message from the cache
func (db *DB) DeleteMessage(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	return err
}

// PruneBefore deletes messages fetched before cutoff and returns how many
// were removed
func (db *DB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM messages WHERE fetched_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetStats returns aggregate cache statistics
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT thread_id) FROM messages
	`).Scan(&stats.Messages, &stats.Threads)
	if err != nil {
		return nil, err
	}
	if stats.Messages == 0 {
		return stats, nil
	}

	var oldest, newest time.Time
	if err := db.QueryRowContext(ctx, `SELECT fetched_at FROM messages ORDER BY fetched_at ASC LIMIT 1`).Scan(&oldest); err != nil {
		return nil, err
	}
	if err := db.QueryRowContext(ctx, `SELECT fetched_at FROM messages ORDER BY fetched_at DESC LIMIT 1`).Scan(&newest); err != nil {
		return nil, err
	}
	stats.Oldest = &oldest
	stats.Newest = &newest

	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*CachedMessage, error) {
	m := &CachedMessage{}
	var subject, fromName, to, snippet, body, labels, headers sql.NullString

	err := s.Scan(
		&m.ID, &m.ThreadID, &subject, &m.From.Email, &fromName, &to,
		&m.Date, &snippet, &body, &labels, &headers, &m.IsRead, &m.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Subject = subject.String
	m.From.Name = fromName.String
	m.Snippet = snippet.String
	m.Body = body.String

	if err := unmarshalJSON(to, &m.To); err != nil {
		return nil, fmt.Errorf("failed to decode recipients of %s: %w", m.ID, err)
	}
	if err := unmarshalJSON(labels, &m.Labels); err != nil {
		return nil, fmt.Errorf("failed to decode labels of %s: %w", m.ID, err)
	}
	if err := unmarshalJSON(headers, &m.Headers); err != nil {
		return nil, fmt.Errorf("failed to decode headers of %s: %w", m.ID, err)
	}

	return m, nil
}

// marshalJSON encodes v, storing NULL for empty collections
func marshalJSON[T any](v T) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	switch string(data) {
	case "null", "[]", "{}":
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalJSON(ns sql.NullString, v any) error {
	if !ns.Valid {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), v)
}
