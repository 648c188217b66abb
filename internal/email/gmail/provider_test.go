package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/vijay-prabhu/gmailconn/internal/config"
	"github.com/vijay-prabhu/gmailconn/internal/email"
	"github.com/vijay-prabhu/gmailconn/internal/executor"
	"github.com/vijay-prabhu/gmailconn/internal/failure"
	"github.com/vijay-prabhu/gmailconn/internal/ratelimit"
	"github.com/vijay-prabhu/gmailconn/internal/retry"
)

// fakeGmail is a minimal stand-in for the Gmail REST API
type fakeGmail struct {
	t *testing.T

	mu       sync.Mutex
	messages map[string]map[string]any
	sent     []string
	lastList *http.Request

	getCalls   atomic.Int64
	failGets   atomic.Int64 // Number of upcoming gets that return 503
	listStatus atomic.Int64 // Non-zero forces an error status for list
}

func newFakeGmail(t *testing.T) *fakeGmail {
	return &fakeGmail{
		t: t,
		messages: map[string]map[string]any{
			"m1": textMessage("m1", "t1", "Hello", "Jane <jane@example.com>", "first body"),
			"m2": textMessage("m2", "t2", "Re: Hello", "joe@example.com", "second body"),
			"m3": textMessage("m3", "t1", "Follow up", "jane@example.com", "third body"),
		},
	}
}

func textMessage(id, thread, subject, from, body string) map[string]any {
	return map[string]any{
		"id":           id,
		"threadId":     thread,
		"labelIds":     []string{"INBOX", "UNREAD"},
		"snippet":      body,
		"internalDate": "1767225600000",
		"payload": map[string]any{
			"mimeType": "text/plain",
			"headers": []map[string]string{
				{"name": "Subject", "value": subject},
				{"name": "From", "value": from},
				{"name": "To", "value": "me@example.com"},
				{"name": "Date", "value": "Thu, 1 Jan 2026 10:00:00 +0000"},
				{"name": "Message-ID", "value": "<" + id + "@example.com>"},
			},
			"body": map[string]any{
				"data": base64.URLEncoding.EncodeToString([]byte(body)),
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors":  []map[string]string{{"reason": reason, "message": message}},
		},
	})
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/gmail/v1/users/me/"
	path := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case path == "profile":
		writeJSON(w, http.StatusOK, map[string]any{"emailAddress": "me@example.com", "messagesTotal": 3})

	case path == "messages" && r.Method == http.MethodGet:
		f.mu.Lock()
		f.lastList = r
		f.mu.Unlock()
		if status := int(f.listStatus.Load()); status != 0 {
			apiError(w, status, "rateLimitExceeded", "Quota exceeded for quota metric")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": []map[string]string{
				{"id": "m1", "threadId": "t1"},
				{"id": "m2", "threadId": "t2"},
			},
			"resultSizeEstimate": 2,
		})

	case path == "messages/send" && r.Method == http.MethodPost:
		var body struct {
			Raw      string `json:"raw"`
			ThreadID string `json:"threadId"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		raw, err := base64.URLEncoding.DecodeString(body.Raw)
		require.NoError(f.t, err)
		f.mu.Lock()
		f.sent = append(f.sent, string(raw))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": "sent-1", "threadId": "t9", "labelIds": []string{"SENT"}})

	case strings.HasPrefix(path, "messages/") && r.Method == http.MethodGet:
		f.getCalls.Add(1)
		if f.failGets.Load() > 0 {
			f.failGets.Add(-1)
			apiError(w, http.StatusServiceUnavailable, "backendError", "Backend Error")
			return
		}
		id := strings.TrimPrefix(path, "messages/")
		f.mu.Lock()
		msg, ok := f.messages[id]
		f.mu.Unlock()
		if !ok {
			apiError(w, http.StatusNotFound, "notFound", "Requested entity was not found.")
			return
		}
		writeJSON(w, http.StatusOK, msg)

	default:
		http.NotFound(w, r)
	}
}

func newTestProvider(t *testing.T, fake *fakeGmail, attempts int, opts ...Option) *Provider {
	t.Helper()
	return newTestProviderWithConfig(t, fake, config.Default(), attempts, opts...)
}

func newTestProviderWithConfig(t *testing.T, fake *fakeGmail, cfg *config.Config, attempts int, opts ...Option) *Provider {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	limiter, err := ratelimit.New(1000, 1000)
	require.NoError(t, err)

	exec, err := executor.New(limiter, executor.Config{
		Retry: retry.Config{
			MaxAttempts: attempts,
			BackoffBase: time.Millisecond,
			MaxBackoff:  2 * time.Millisecond,
			Factor:      2,
		},
		MaxWait: time.Second,
	})
	require.NoError(t, err)

	opts = append(opts, WithClientOptions(
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	))
	p := New(cfg, exec, opts...)
	require.NoError(t, p.Authenticate(context.Background()))
	return p
}

func TestAuthenticate(t *testing.T) {
	p := newTestProvider(t, newFakeGmail(t), 3)

	assert.True(t, p.IsAuthenticated())
	addr, err := p.GetUserEmail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", addr)
	assert.Equal(t, "gmail", p.Name())
}

func TestNotAuthenticated(t *testing.T) {
	p := New(config.Default(), nil)

	_, err := p.GetMessage(context.Background(), "m1")
	assert.Equal(t, failure.KindConfiguration, failure.KindOf(err))

	_, err = p.ListMessages(context.Background(), email.ListOptions{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = p.GetUserEmail(context.Background())
	assert.Error(t, err)
}

func TestListMessages(t *testing.T) {
	fake := newFakeGmail(t)
	p := newTestProvider(t, fake, 3)

	list, err := p.ListMessages(context.Background(), email.ListOptions{
		Query:      "from:jane@example.com",
		LabelIDs:   []string{"INBOX"},
		MaxResults: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, []email.MessageRef{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t2"}}, list.Messages)
	assert.EqualValues(t, 2, list.ResultSizeEstimate)

	fake.mu.Lock()
	q := fake.lastList.URL.Query()
	fake.mu.Unlock()
	assert.Equal(t, "from:jane@example.com", q.Get("q"))
	assert.Equal(t, "INBOX", q.Get("labelIds"))
	assert.Equal(t, "10", q.Get("maxResults"))
}

func TestListMessagesQuotaExhausted(t *testing.T) {
	fake := newFakeGmail(t)
	p := newTestProvider(t, fake, 2)
	fake.listStatus.Store(http.StatusForbidden)

	_, err := p.ListMessages(context.Background(), email.ListOptions{})
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))
	assert.False(t, IsAuthError(err))

	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, failure.KindTerminal, fe.Kind)
	assert.Equal(t, OpListMessages, fe.Op)
	assert.Equal(t, 2, fe.Attempts)
}

func TestGetMessage(t *testing.T) {
	p := newTestProvider(t, newFakeGmail(t), 3)

	msg, err := p.GetMessage(context.Background(), "m1")
	require.NoError(t, err)

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, "Hello", msg.Subject)
	assert.Equal(t, email.Address{Name: "Jane", Email: "jane@example.com"}, msg.From)
	assert.Equal(t, "first body", msg.Body)
	assert.False(t, msg.IsRead)
	assert.Equal(t, "<m1@example.com>", msg.Headers["Message-ID"])
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), msg.Date.UTC())
}

func TestGetMessageRetriesServerErrors(t *testing.T) {
	fake := newFakeGmail(t)
	p := newTestProvider(t, fake, 3)
	fake.failGets.Store(2)

	msg, err := p.GetMessage(context.Background(), "m2")
	require.NoError(t, err)
	assert.Equal(t, "Re: Hello", msg.Subject)
	assert.EqualValues(t, 3, fake.getCalls.Load())
}

func TestGetMessageNotFoundIsNotRetried(t *testing.T) {
	fake := newFakeGmail(t)
	p := newTestProvider(t, fake, 5)

	_, err := p.GetMessage(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, failure.CategoryNotFound, failure.CategoryOf(err))
	assert.EqualValues(t, 1, fake.getCalls.Load())
}

func TestSendMessage(t *testing.T) {
	fake := newFakeGmail(t)
	p := newTestProvider(t, fake, 3)

	sent, err := p.SendMessage(context.Background(), email.OutgoingMessage{
		To:      []string{"jane@example.com"},
		Subject: "Status",
		Body:    "All green.",
	})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", sent.ID)
	assert.Equal(t, []string{"SENT"}, sent.Labels)

	require.Len(t, fake.sent, 1)
	assert.Contains(t, fake.sent[0], "To: <jane@example.com>\r\n")
	assert.Contains(t, fake.sent[0], "Subject: Status\r\n")
	assert.True(t, strings.HasSuffix(fake.sent[0], "\r\n\r\nAll green."))
}

func TestSendMessageRejectsInvalid(t *testing.T) {
	fake := newFakeGmail(t)
	p := newTestProvider(t, fake, 3)

	_, err := p.SendMessage(context.Background(), email.OutgoingMessage{Subject: "no recipients"})
	assert.Equal(t, failure.CategoryInvalidRequest, failure.CategoryOf(err))
	assert.Empty(t, fake.sent)
}

func TestBatchGetMessages(t *testing.T) {
	fake := newFakeGmail(t)
	p := newTestProvider(t, fake, 2)

	results := p.BatchGetMessages(context.Background(), []string{"m3", "nope", "m1"})
	require.Len(t, results, 3)

	assert.Equal(t, "m3", results[0].ID)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "Follow up", results[0].Email.Subject)

	assert.Equal(t, "nope", results[1].ID)
	assert.Equal(t, failure.CategoryNotFound, failure.CategoryOf(results[1].Err))
	assert.Nil(t, results[1].Email)

	require.NoError(t, results[2].Err)
	assert.Equal(t, "m1", results[2].Email.ID)
}

func TestFetchEmails(t *testing.T) {
	fake := newFakeGmail(t)
	p := newTestProvider(t, fake, 3)

	after := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	emails, err := p.FetchEmails(context.Background(), email.FetchOptions{MaxResults: 5, After: &after})
	require.NoError(t, err)

	require.Len(t, emails, 2)
	assert.Equal(t, "m1", emails[0].ID)
	assert.Equal(t, "m2", emails[1].ID)
	assert.Equal(t, "after:2025/12/01", fake.lastList.URL.Query().Get("q"))
}

func TestFetchEmailsZeroGmailConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Gmail = config.GmailConfig{}
	p := newTestProviderWithConfig(t, newFakeGmail(t), cfg, 3)

	emails, err := p.FetchEmails(context.Background(), email.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, defaultMaxResults, p.gmailCfg.MaxResults)
	assert.Equal(t, "me", p.gmailCfg.UserID)
}

// mapCache is an in-memory MessageCache
type mapCache struct {
	mu   sync.Mutex
	data map[string]email.Email
}

func (c *mapCache) GetMessage(_ context.Context, id string) (*email.Email, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.data[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (c *mapCache) PutMessage(_ context.Context, e *email.Email) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[e.ID] = *e
	return nil
}

func TestGetMessageReadThroughCache(t *testing.T) {
	fake := newFakeGmail(t)
	cache := &mapCache{data: map[string]email.Email{}}
	p := newTestProvider(t, fake, 3, WithCache(cache))

	first, err := p.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	second, err := p.GetMessage(context.Background(), "m1")
	require.NoError(t, err)

	assert.Equal(t, first.Subject, second.Subject)
	assert.EqualValues(t, 1, fake.getCalls.Load())
}
