package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vijay-prabhu/gmailconn/internal/email"
	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

const maxBatchIDs = 100

func (s *Server) registerHandlers() {
	s.handlers["list_messages"] = s.handleListMessages
	s.handlers["get_message"] = s.handleGetMessage
	s.handlers["batch_get_messages"] = s.handleBatchGetMessages
	s.handlers["search_messages"] = s.handleSearchMessages
	s.handlers["send_message"] = s.handleSendMessage
	s.handlers["get_profile"] = s.handleGetProfile
}

// decodeParams unmarshals tool arguments; absent arguments leave v untouched
func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return failure.Permanent(failure.CategoryInvalidRequest, fmt.Errorf("invalid parameters: %w", err))
	}
	return nil
}

func invalid(format string, args ...any) error {
	return failure.Permanent(failure.CategoryInvalidRequest, fmt.Errorf(format, args...))
}

type listMessagesParams struct {
	Query      string   `json:"query"`
	LabelIDs   []string `json:"label_ids"`
	MaxResults int      `json:"max_results"`
	PageToken  string   `json:"page_token"`
}

func (s *Server) handleListMessages(ctx context.Context, params json.RawMessage) (any, error) {
	var p listMessagesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if p.MaxResults <= 0 {
		p.MaxResults = 20
	}
	if p.MaxResults > 500 {
		return nil, invalid("max_results must be at most 500")
	}

	return s.provider.ListMessages(ctx, email.ListOptions{
		Query:      p.Query,
		LabelIDs:   p.LabelIDs,
		MaxResults: p.MaxResults,
		PageToken:  p.PageToken,
	})
}

type getMessageParams struct {
	ID string `json:"id"`
}

func (s *Server) handleGetMessage(ctx context.Context, params json.RawMessage) (any, error) {
	var p getMessageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, invalid("id is required")
	}

	return s.provider.GetMessage(ctx, p.ID)
}

type batchGetParams struct {
	IDs []string `json:"ids"`
}

type batchEntry struct {
	ID       string       `json:"id"`
	Email    *email.Email `json:"email,omitempty"`
	Error    string       `json:"error,omitempty"`
	Category string       `json:"category,omitempty"`
}

type batchGetResult struct {
	Messages []batchEntry `json:"messages"`
	Fetched  int          `json:"fetched"`
	Failed   int          `json:"failed"`
}

func (s *Server) handleBatchGetMessages(ctx context.Context, params json.RawMessage) (any, error) {
	var p batchGetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.IDs) == 0 {
		return nil, invalid("ids is required")
	}
	if len(p.IDs) > maxBatchIDs {
		return nil, invalid("at most %d ids per call", maxBatchIDs)
	}

	result := batchGetResult{Messages: make([]batchEntry, 0, len(p.IDs))}
	for _, r := range s.provider.BatchGetMessages(ctx, p.IDs) {
		entry := batchEntry{ID: r.ID, Email: r.Email}
		if r.Err != nil {
			entry.Error = r.Err.Error()
			entry.Category = string(failure.CategoryOf(r.Err))
			result.Failed++
		} else {
			result.Fetched++
		}
		result.Messages = append(result.Messages, entry)
	}

	return result, nil
}

type searchMessagesParams struct {
	Query     string `json:"query"`
	SinceDays int    `json:"since_days"`
	Limit     int    `json:"limit"`
}

func (s *Server) handleSearchMessages(ctx context.Context, params json.RawMessage) (any, error) {
	var p searchMessagesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	opts := email.FetchOptions{
		Query:      p.Query,
		MaxResults: 10,
	}
	if p.Limit > 0 {
		opts.MaxResults = p.Limit
	}
	if p.SinceDays > 0 {
		since := time.Now().AddDate(0, 0, -p.SinceDays)
		opts.After = &since
	}

	emails, err := s.provider.FetchEmails(ctx, opts)
	if err != nil {
		return nil, err
	}
	if emails == nil {
		emails = []email.Email{}
	}
	return emails, nil
}

type sendMessageParams struct {
	To       []string `json:"to"`
	Cc       []string `json:"cc"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	ThreadID string   `json:"thread_id"`
}

func (s *Server) handleSendMessage(ctx context.Context, params json.RawMessage) (any, error) {
	var p sendMessageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	from, _ := s.provider.GetUserEmail(ctx)
	return s.provider.SendMessage(ctx, email.OutgoingMessage{
		From:     from,
		To:       p.To,
		Cc:       p.Cc,
		Subject:  p.Subject,
		Body:     p.Body,
		ThreadID: p.ThreadID,
	})
}

type profileResult struct {
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

func (s *Server) handleGetProfile(ctx context.Context, _ json.RawMessage) (any, error) {
	addr, err := s.provider.GetUserEmail(ctx)
	if err != nil {
		return nil, err
	}
	return profileResult{Email: addr, Provider: s.provider.Name()}, nil
}
