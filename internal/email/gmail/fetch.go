package gmail

import (
	"encoding/base64"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html"
	"google.golang.org/api/gmail/v1"

	"github.com/vijay-prabhu/gmailconn/internal/email"
)

// buildQuery constructs a Gmail search query from FetchOptions
func buildQuery(opts email.FetchOptions) string {
	var parts []string

	if opts.After != nil {
		parts = append(parts, fmt.Sprintf("after:%s", opts.After.Format("2006/01/02")))
	}

	if opts.IncludeSent {
		parts = append(parts, "(in:inbox OR in:sent)")
	}

	if opts.Query != "" {
		parts = append(parts, opts.Query)
	}

	return strings.Join(parts, " ")
}

// convertMessage converts a Gmail message to our Email type
func convertMessage(msg *gmail.Message) email.Email {
	e := email.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
		IsRead:   !slices.Contains(msg.LabelIds, "UNREAD"),
		Headers:  make(map[string]string),
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "subject":
				e.Subject = header.Value
			case "from":
				e.From = email.ParseAddress(header.Value)
			case "to":
				e.To = email.ParseAddresses(header.Value)
			case "date":
				if t, err := parseDate(header.Value); err == nil {
					e.Date = t
				}
			default:
				if isUsefulHeader(header.Name) {
					e.Headers[header.Name] = header.Value
				}
			}
		}
		e.Body = extractBody(msg.Payload)
	}

	// Fallback to internal timestamp if date parsing failed
	if e.Date.IsZero() && msg.InternalDate > 0 {
		e.Date = time.UnixMilli(msg.InternalDate).UTC()
	}

	return e
}

// parseDate parses an RFC 5322 date, tolerating a trailing "(MST)" comment
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := mail.ParseDate(s); err == nil {
		return t, nil
	}
	if i := strings.LastIndex(s, " ("); i > 0 {
		if t, err := mail.ParseDate(s[:i]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// extractBody prefers text/plain and falls back to text of the HTML part
func extractBody(payload *gmail.MessagePart) string {
	if text := extractPartByMime(payload, "text/plain"); text != "" {
		return text
	}

	if markup := extractPartByMime(payload, "text/html"); markup != "" {
		return htmlToText(markup)
	}

	return ""
}

// extractPartByMime recursively finds a part with the given MIME type
func extractPartByMime(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}

	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
			return string(decoded)
		}
	}

	for _, subpart := range part.Parts {
		if result := extractPartByMime(subpart, mimeType); result != "" {
			return result
		}
	}

	return ""
}

// decodeBase64URL accepts both padded and unpadded base64url
func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// htmlToText returns the visible text of an HTML document
func htmlToText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))

	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "li", "tr":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
				b.WriteByte(' ')
			case "p", "div", "li", "tr", "td":
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// isUsefulHeader returns true for headers we want to preserve
func isUsefulHeader(name string) bool {
	switch strings.ToLower(name) {
	case "message-id", "in-reply-to", "references", "reply-to", "cc":
		return true
	}
	return false
}
