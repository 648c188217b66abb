package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vijay-prabhu/gmailconn/internal/database"
	"github.com/vijay-prabhu/gmailconn/internal/email"
	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// now is swapped in tests
var now = time.Now

// Table writes data as a formatted table to stdout
func Table(data any) error {
	return TableTo(os.Stdout, data)
}

// TableTo writes data as a formatted table to the given writer
func TableTo(w io.Writer, data any) error {
	switch v := data.(type) {
	case []email.Email:
		return emailsTable(w, v)
	case *email.Email:
		return emailDetail(w, v)
	case *email.MessageList:
		return messageListTable(w, v)
	case []email.BatchResult:
		return batchTable(w, v)
	case *email.SentMessage:
		return sentDetail(w, v)
	case []database.CachedMessage:
		return cachedTable(w, v)
	case *database.Stats:
		return statsTable(w, v)
	default:
		return fmt.Errorf("unsupported data type for table output: %T", data)
	}
}

func emailsTable(w io.Writer, emails []email.Email) error {
	if len(emails) == 0 {
		fmt.Fprintln(w, "No messages found.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "From", "Subject", "Date", "")
	for _, e := range emails {
		unread := ""
		if !e.IsRead {
			unread = "*"
		}
		if err := table.Append([]string{
			e.ID,
			truncate(sender(e.From), 25),
			truncate(e.Subject, 50),
			formatDate(e.Date),
			unread,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func messageListTable(w io.Writer, list *email.MessageList) error {
	if len(list.Messages) == 0 {
		fmt.Fprintln(w, "No messages found.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Thread")
	for _, m := range list.Messages {
		if err := table.Append([]string{m.ID, m.ThreadID}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%d shown, about %d matching\n", len(list.Messages), list.ResultSizeEstimate)
	if list.NextPageToken != "" {
		fmt.Fprintf(w, "Next page: --page-token %s\n", list.NextPageToken)
	}
	return nil
}

func emailDetail(w io.Writer, e *email.Email) error {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Subject: %s\n", e.Subject)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "From:    %s\n", e.From)
	if len(e.To) > 0 {
		to := make([]string, len(e.To))
		for i, a := range e.To {
			to[i] = a.String()
		}
		fmt.Fprintf(w, "To:      %s\n", strings.Join(to, ", "))
	}
	if cc := e.Headers["Cc"]; cc != "" {
		fmt.Fprintf(w, "Cc:      %s\n", cc)
	}
	fmt.Fprintf(w, "Date:    %s\n", e.Date.Format("Mon, Jan 02 2006 3:04 PM"))
	fmt.Fprintf(w, "ID:      %s (thread %s)\n", e.ID, e.ThreadID)
	if len(e.Labels) > 0 {
		fmt.Fprintf(w, "Labels:  %s\n", strings.Join(e.Labels, ", "))
	}
	fmt.Fprintln(w)

	body := e.Body
	if body == "" {
		body = e.Snippet
	}
	if body == "" {
		body = "(no content)"
	}
	fmt.Fprintln(w, wordWrap(body, 78))

	return nil
}

func batchTable(w io.Writer, results []email.BatchResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Status", "Subject / Error")

	failed := 0
	for _, r := range results {
		row := []string{r.ID, "ok", ""}
		switch {
		case r.Err != nil:
			failed++
			row[1] = string(failure.CategoryOf(r.Err))
			row[2] = truncate(r.Err.Error(), 60)
		case r.Email != nil:
			row[2] = truncate(r.Email.Subject, 60)
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%d fetched, %d failed\n", len(results)-failed, failed)
	return nil
}

func sentDetail(w io.Writer, m *email.SentMessage) error {
	fmt.Fprintf(w, "Sent message %s (thread %s)\n", m.ID, m.ThreadID)
	return nil
}

func cachedTable(w io.Writer, msgs []database.CachedMessage) error {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "Cache is empty.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "From", "Subject", "Date", "Cached")
	for _, m := range msgs {
		if err := table.Append([]string{
			m.ID,
			truncate(sender(m.From), 25),
			truncate(m.Subject, 40),
			formatDate(m.Date),
			formatAge(m.Age(now())),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func statsTable(w io.Writer, s *database.Stats) error {
	fmt.Fprintln(w, "Message Cache")
	fmt.Fprintln(w, strings.Repeat("-", 30))
	fmt.Fprintf(w, "Messages:       %d\n", s.Messages)
	fmt.Fprintf(w, "Threads:        %d\n", s.Threads)
	if s.Oldest != nil {
		fmt.Fprintf(w, "Oldest fetch:   %s\n", formatAge(now().Sub(*s.Oldest)))
	}
	if s.Newest != nil {
		fmt.Fprintf(w, "Newest fetch:   %s\n", formatAge(now().Sub(*s.Newest)))
	}
	return nil
}

func sender(a email.Address) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Year() == now().Year() {
		return t.Local().Format("Jan 02 15:04")
	}
	return t.Local().Format("Jan 02 2006")
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// wordWrap wraps text at the specified width
func wordWrap(text string, width int) string {
	var result strings.Builder
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		if len(line) <= width {
			result.WriteString(line)
			result.WriteString("\n")
			continue
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := words[0]
		for _, word := range words[1:] {
			if len(currentLine)+1+len(word) <= width {
				currentLine += " " + word
			} else {
				result.WriteString(currentLine)
				result.WriteString("\n")
				currentLine = word
			}
		}
		result.WriteString(currentLine)
		result.WriteString("\n")
	}

	return strings.TrimSuffix(result.String(), "\n")
}
