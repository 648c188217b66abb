package email

import (
	"context"
	"time"
)

// Provider defines the interface for email providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// Authenticate builds credentials and the API client
	Authenticate(ctx context.Context) error

	// ListMessages returns one page of message references
	ListMessages(ctx context.Context, opts ListOptions) (*MessageList, error)

	// FetchEmails retrieves full emails matching criteria, following pages
	FetchEmails(ctx context.Context, opts FetchOptions) ([]Email, error)

	// GetMessage retrieves a single email by ID
	GetMessage(ctx context.Context, id string) (*Email, error)

	// BatchGetMessages retrieves several emails; failures are reported per ID
	BatchGetMessages(ctx context.Context, ids []string) []BatchResult

	// SendMessage sends an email as the authenticated user
	SendMessage(ctx context.Context, msg OutgoingMessage) (*SentMessage, error)

	// GetUserEmail returns the authenticated user's email address
	GetUserEmail(ctx context.Context) (string, error)
}

// ListOptions configures a single page listing
type ListOptions struct {
	Query            string   // Provider search query
	LabelIDs         []string // Only messages carrying all of these labels
	MaxResults       int      // Page size
	PageToken        string   // Continue a previous listing
	IncludeSpamTrash bool
}

// FetchOptions configures email fetching
type FetchOptions struct {
	MaxResults  int        // Maximum number of emails to fetch
	After       *time.Time // Fetch emails after this date
	IncludeSent bool       // Include sent mail alongside the inbox
	Query       string     // Provider-specific query string
}

// DefaultFetchOptions returns sensible defaults
func DefaultFetchOptions() FetchOptions {
	after := time.Now().AddDate(0, -1, 0) // Last 30 days
	return FetchOptions{
		MaxResults: 100,
		After:      &after,
	}
}
