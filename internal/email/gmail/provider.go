package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/vijay-prabhu/gmailconn/internal/config"
	"github.com/vijay-prabhu/gmailconn/internal/email"
	"github.com/vijay-prabhu/gmailconn/internal/executor"
	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// Operation names used for logging and failure annotation
const (
	OpListMessages     = "listMessages"
	OpGetMessage       = "getMessage"
	OpSendMessage      = "sendMessage"
	OpBatchGetMessages = "batchGetMessages"
	OpGetProfile       = "getProfile"
)

// ErrNotAuthenticated is returned when an API method is called before Authenticate
var ErrNotAuthenticated = failure.Configf("not authenticated - call Authenticate() first")

// MessageCache stores fetched messages locally
type MessageCache interface {
	GetMessage(ctx context.Context, id string) (*email.Email, error)
	PutMessage(ctx context.Context, e *email.Email) error
}

// Provider implements the email.Provider interface for Gmail. Every API call
// goes through the executor, so it is rate limited, retried and logged.
type Provider struct {
	auth       config.AuthConfig
	gmailCfg   config.GmailConfig
	exec       *executor.Executor
	log        zerolog.Logger
	cache      MessageCache
	clientOpts []option.ClientOption
	now        func() time.Time

	service   *gmail.Service
	userEmail string
}

// Option configures a Provider
type Option func(*Provider)

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(p *Provider) {
		p.log = log
	}
}

// WithCache enables read-through caching of fetched messages
func WithCache(c MessageCache) Option {
	return func(p *Provider) {
		p.cache = c
	}
}

// WithClientOptions appends options used when creating the Gmail service.
// When options include credentials or an HTTP client, the configured auth is
// not consulted.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// defaultMaxResults matches gmail.max_results in config.Default
const defaultMaxResults = 100

// New creates a new Gmail provider
func New(cfg *config.Config, exec *executor.Executor, opts ...Option) *Provider {
	p := &Provider{
		auth:     cfg.Auth,
		gmailCfg: cfg.Gmail,
		exec:     exec,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.gmailCfg.UserID == "" {
		p.gmailCfg.UserID = "me"
	}
	if p.gmailCfg.MaxResults < 1 {
		p.gmailCfg.MaxResults = defaultMaxResults
	}
	if p.gmailCfg.BatchConcurrency < 1 {
		p.gmailCfg.BatchConcurrency = 1
	}
	return p
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "gmail"
}

// IsAuthenticated reports whether Authenticate has completed
func (p *Provider) IsAuthenticated() bool {
	return p.service != nil
}

// Authenticate builds credentials and the Gmail service, then caches the
// user's address
func (p *Provider) Authenticate(ctx context.Context) error {
	opts := []option.ClientOption{}
	if p.gmailCfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.gmailCfg.Endpoint))
	}

	if len(p.clientOpts) == 0 {
		ts, err := tokenSource(ctx, p.auth)
		if err != nil {
			return err
		}
		opts = append(opts, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	}
	opts = append(opts, p.clientOpts...)

	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return failure.Configf("failed to create Gmail service: %w", err)
	}
	p.service = service

	profile, err := executor.Execute(ctx, p.exec, OpGetProfile, func(ctx context.Context) (*gmail.Profile, error) {
		profile, err := p.service.Users.GetProfile(p.gmailCfg.UserID).Context(ctx).Do()
		return profile, classify(err)
	})
	if err != nil {
		p.service = nil
		return fmt.Errorf("failed to get user profile: %w", err)
	}

	p.userEmail = profile.EmailAddress
	p.log.Info().Str("user", p.userEmail).Msg("authenticated with gmail")
	return nil
}

// GetUserEmail returns the authenticated user's email address
func (p *Provider) GetUserEmail(ctx context.Context) (string, error) {
	if p.userEmail == "" {
		return "", ErrNotAuthenticated
	}
	return p.userEmail, nil
}

// ListMessages returns one page of message references
func (p *Provider) ListMessages(ctx context.Context, opts email.ListOptions) (*email.MessageList, error) {
	if p.service == nil {
		return nil, ErrNotAuthenticated
	}

	resp, err := executor.Execute(ctx, p.exec, OpListMessages, func(ctx context.Context) (*gmail.ListMessagesResponse, error) {
		req := p.service.Users.Messages.List(p.gmailCfg.UserID).
			IncludeSpamTrash(opts.IncludeSpamTrash)
		if opts.Query != "" {
			req = req.Q(opts.Query)
		}
		if len(opts.LabelIDs) > 0 {
			req = req.LabelIds(opts.LabelIDs...)
		}
		if opts.MaxResults > 0 {
			req = req.MaxResults(int64(opts.MaxResults))
		}
		if opts.PageToken != "" {
			req = req.PageToken(opts.PageToken)
		}

		resp, err := req.Context(ctx).Do()
		return resp, classify(err)
	})
	if err != nil {
		return nil, err
	}

	list := &email.MessageList{
		Messages:           make([]email.MessageRef, 0, len(resp.Messages)),
		NextPageToken:      resp.NextPageToken,
		ResultSizeEstimate: resp.ResultSizeEstimate,
	}
	for _, m := range resp.Messages {
		list.Messages = append(list.Messages, email.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}

	return list, nil
}

// FetchEmails pages through matching messages and fetches each in full.
// Messages that vanished between listing and fetching are skipped.
func (p *Provider) FetchEmails(ctx context.Context, opts email.FetchOptions) ([]email.Email, error) {
	if p.service == nil {
		return nil, ErrNotAuthenticated
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = p.gmailCfg.MaxResults
	}

	query := buildQuery(opts)

	var emails []email.Email
	pageToken := ""

	for {
		page, err := p.ListMessages(ctx, email.ListOptions{
			Query:      query,
			MaxResults: min(opts.MaxResults-len(emails), 500),
			PageToken:  pageToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, ref := range page.Messages {
			msg, err := p.GetMessage(ctx, ref.ID)
			if err != nil {
				if failure.CategoryOf(err) == failure.CategoryNotFound {
					p.log.Warn().Str("id", ref.ID).Err(err).Msg("message disappeared, skipping")
					continue
				}
				return emails, fmt.Errorf("failed to fetch message %s: %w", ref.ID, err)
			}

			emails = append(emails, *msg)
			if len(emails) >= opts.MaxResults {
				return emails, nil
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return emails, nil
}

// GetMessage retrieves a single email by ID, consulting the cache first
func (p *Provider) GetMessage(ctx context.Context, id string) (*email.Email, error) {
	if p.cache != nil {
		cached, err := p.cache.GetMessage(ctx, id)
		if err != nil {
			p.log.Warn().Err(err).Str("id", id).Msg("cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	if p.service == nil {
		return nil, ErrNotAuthenticated
	}

	msg, err := executor.Execute(ctx, p.exec, OpGetMessage, func(ctx context.Context) (*gmail.Message, error) {
		msg, err := p.service.Users.Messages.Get(p.gmailCfg.UserID, id).
			Format("full").
			Context(ctx).
			Do()
		return msg, classify(err)
	})
	if err != nil {
		return nil, err
	}

	result := convertMessage(msg)

	if p.cache != nil {
		if err := p.cache.PutMessage(ctx, &result); err != nil {
			p.log.Warn().Err(err).Str("id", id).Msg("cache write failed")
		}
	}

	return &result, nil
}

// BatchGetMessages fetches messages concurrently, bounded by
// gmail.batch_concurrency. Results keep the order of ids.
func (p *Provider) BatchGetMessages(ctx context.Context, ids []string) []email.BatchResult {
	results := make([]email.BatchResult, len(ids))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.gmailCfg.BatchConcurrency)

	started := p.now()
	for i, id := range ids {
		wg.Add(1)
		go func(index int, id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[index] = email.BatchResult{ID: id, Err: failure.WithOp(failure.Cancelled(ctx.Err()), OpBatchGetMessages)}
				return
			}

			msg, err := p.GetMessage(ctx, id)
			results[index] = email.BatchResult{ID: id, Email: msg, Err: err}
		}(i, id)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.log.Info().
		Str("op", OpBatchGetMessages).
		Int("requested", len(ids)).
		Int("failed", failed).
		Dur("elapsed", p.now().Sub(started)).
		Msg("batch finished")

	return results
}

// SendMessage sends msg as the authenticated user
func (p *Provider) SendMessage(ctx context.Context, msg email.OutgoingMessage) (*email.SentMessage, error) {
	if err := msg.Validate(); err != nil {
		return nil, failure.WithOp(failure.Permanent(failure.CategoryInvalidRequest, err), OpSendMessage)
	}
	if p.service == nil {
		return nil, ErrNotAuthenticated
	}

	raw := base64.URLEncoding.EncodeToString(msg.RFC822(p.now()))

	sent, err := executor.Execute(ctx, p.exec, OpSendMessage, func(ctx context.Context) (*gmail.Message, error) {
		sent, err := p.service.Users.Messages.Send(p.gmailCfg.UserID, &gmail.Message{
			Raw:      raw,
			ThreadId: msg.ThreadID,
		}).Context(ctx).Do()
		return sent, classify(err)
	})
	if err != nil {
		return nil, err
	}

	return &email.SentMessage{ID: sent.Id, ThreadID: sent.ThreadId, Labels: sent.LabelIds}, nil
}

// IsAuthError reports whether err means the credentials were rejected
func IsAuthError(err error) bool {
	return failure.CategoryOf(err) == failure.CategoryAuth
}

// IsQuotaError reports whether err means the API quota was exhausted
func IsQuotaError(err error) bool {
	cat := failure.CategoryOf(err)
	return cat == failure.CategoryQuota || cat == failure.CategoryRateLimit
}

var _ email.Provider = (*Provider)(nil)
