package database

import (
	"database/sql"
	"time"

	"github.com/vijay-prabhu/gmailconn/internal/email"
)

// CachedMessage is a message row together with the time it was stored
type CachedMessage struct {
	email.Email
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how long ago the message was cached
func (m *CachedMessage) Age(now time.Time) time.Duration {
	return now.Sub(m.FetchedAt)
}

// Stats summarizes the cache contents
type Stats struct {
	Messages int        `json:"messages"`
	Threads  int        `json:"threads"`
	Oldest   *time.Time `json:"oldest_fetch,omitempty"`
	Newest   *time.Time `json:"newest_fetch,omitempty"`
}

// NullString converts an empty string to a NULL column value
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
