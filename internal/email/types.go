package email

import (
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// Email represents a provider-agnostic email message
type Email struct {
	ID       string            `json:"id"`
	ThreadID string            `json:"thread_id"`
	Subject  string            `json:"subject"`
	From     Address           `json:"from"`
	To       []Address         `json:"to,omitempty"`
	Date     time.Time         `json:"date"`
	Snippet  string            `json:"snippet,omitempty"`
	Body     string            `json:"body,omitempty"`
	Labels   []string          `json:"labels,omitempty"`
	IsRead   bool              `json:"is_read"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Address represents an email address with optional name
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// MessageRef identifies a message without its content
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

// MessageList is one page of a listing
type MessageList struct {
	Messages           []MessageRef `json:"messages"`
	NextPageToken      string       `json:"next_page_token,omitempty"`
	ResultSizeEstimate int64        `json:"result_size_estimate"`
}

// BatchResult is the outcome for one ID of a batch fetch
type BatchResult struct {
	ID    string `json:"id"`
	Email *Email `json:"email,omitempty"`
	Err   error  `json:"-"`
}

// OutgoingMessage is a plain-text message to send
type OutgoingMessage struct {
	From     string // Optional; the provider fills in the authenticated user
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	Body     string
	ThreadID string // Reply within an existing thread
	HTML     bool   // Body is text/html instead of text/plain
}

// SentMessage identifies a message accepted by the provider
type SentMessage struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"thread_id"`
	Labels   []string `json:"labels,omitempty"`
}

// String returns the formatted address
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Domain extracts the domain from the email address
func (a Address) Domain() string {
	parts := strings.Split(a.Email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// Domain returns the sender's email domain
func (e *Email) Domain() string {
	return e.From.Domain()
}

// IsFromMe checks if this email was sent by the given address
func (e *Email) IsFromMe(myEmail string) bool {
	return strings.EqualFold(e.From.Email, myEmail)
}

// ParseAddress parses an email address string like "Name <email@example.com>"
func ParseAddress(s string) Address {
	s = strings.TrimSpace(s)

	// Try to extract name and email from "Name <email>" format
	if start := strings.Index(s, "<"); start != -1 {
		if end := strings.Index(s, ">"); end > start {
			return Address{
				Name:  strings.Trim(strings.TrimSpace(s[:start]), `"`),
				Email: strings.TrimSpace(s[start+1 : end]),
			}
		}
	}

	// Just an email address
	return Address{Email: s}
}

// ParseAddresses parses a comma-separated list of addresses
func ParseAddresses(s string) []Address {
	if s == "" {
		return nil
	}

	var addresses []Address
	for _, part := range strings.Split(s, ",") {
		if addr := ParseAddress(part); addr.Email != "" {
			addresses = append(addresses, addr)
		}
	}
	return addresses
}

// Validate checks that the message can be sent. Every address must parse
// as a single RFC 5322 address, so no header value can carry a line break.
func (m OutgoingMessage) Validate() error {
	var errs []error
	if len(m.To)+len(m.Cc)+len(m.Bcc) == 0 {
		errs = append(errs, errors.New("at least one recipient is required"))
	}
	for _, list := range [][]string{m.To, m.Cc, m.Bcc} {
		for _, addr := range list {
			if _, err := mail.ParseAddress(addr); err != nil {
				errs = append(errs, fmt.Errorf("invalid recipient address %q: %w", addr, err))
			}
		}
	}
	if m.From != "" {
		if _, err := mail.ParseAddress(m.From); err != nil {
			errs = append(errs, fmt.Errorf("invalid sender address %q: %w", m.From, err))
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		errs = append(errs, errors.New("subject must not contain line breaks"))
	}
	return errors.Join(errs...)
}

// formatAddresses renders addresses for a header value. Addresses that do
// not parse are dropped.
func formatAddresses(list ...string) string {
	var parts []string
	for _, s := range list {
		if addr, err := mail.ParseAddress(s); err == nil {
			parts = append(parts, addr.String())
		}
	}
	return strings.Join(parts, ", ")
}

// RFC822 renders the message in internet message format
func (m OutgoingMessage) RFC822(date time.Time) []byte {
	var b strings.Builder

	header := func(name, value string) {
		if value == "" {
			return
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	header("From", formatAddresses(m.From))
	header("To", formatAddresses(m.To...))
	header("Cc", formatAddresses(m.Cc...))
	header("Bcc", formatAddresses(m.Bcc...))
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	contentType := "text/plain"
	if m.HTML {
		contentType = "text/html"
	}
	header("Content-Type", contentType+"; charset=\"UTF-8\"")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return []byte(b.String())
}
