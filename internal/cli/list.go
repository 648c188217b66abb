package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/gmailconn/internal/email"
	"github.com/vijay-prabhu/gmailconn/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List messages",
	Long: `List messages matching a Gmail search query.

By default each message is fetched in full. With --ids-only a single
page of message references is returned instead, which costs one API
call.

Examples:
  gmailconn list                              # Latest messages
  gmailconn list -q "from:boss@example.com"   # Gmail search syntax
  gmailconn list --since=7d --include-sent    # Last week, inbox and sent
  gmailconn list --ids-only --label=INBOX     # One page of IDs
  gmailconn list -o json                      # Output as JSON`,
	RunE: runList,
}

var (
	listQuery       string
	listLabels      []string
	listSince       string
	listLimit       int
	listPageToken   string
	listIDsOnly     bool
	listIncludeSent bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Gmail search query")
	listCmd.Flags().StringSliceVar(&listLabels, "label", nil, "Restrict to label IDs (with --ids-only)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only messages newer than this (e.g., 7d, 2w, 1m)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of messages (default: gmail.max_results)")
	listCmd.Flags().StringVar(&listPageToken, "page-token", "", "Page token from a previous --ids-only call")
	listCmd.Flags().BoolVar(&listIDsOnly, "ids-only", false, "Return message references without fetching them")
	listCmd.Flags().BoolVar(&listIncludeSent, "include-sent", false, "Include sent mail")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var after *time.Time
	if listSince != "" {
		since, err := parseDuration(listSince)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		t := time.Now().Add(-since)
		after = &t
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()

	if listIDsOnly {
		query := listQuery
		if after != nil {
			query = buildSinceQuery(query, *after)
		}
		list, err := s.provider.ListMessages(ctx, email.ListOptions{
			Query:      query,
			LabelIDs:   listLabels,
			MaxResults: listLimit,
			PageToken:  listPageToken,
		})
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}
		return output.OutputTo(out, outputFmt, list)
	}

	stop := NewTerminal().Spin("Fetching messages")
	emails, err := s.provider.FetchEmails(ctx, email.FetchOptions{
		MaxResults:  listLimit,
		After:       after,
		IncludeSent: listIncludeSent,
		Query:       listQuery,
	})
	stop()
	if err != nil {
		return err
	}

	return output.OutputTo(out, outputFmt, emails)
}

func buildSinceQuery(query string, after time.Time) string {
	since := "after:" + after.Format("2006/01/02")
	if query == "" {
		return since
	}
	return since + " " + query
}

// parseDuration parses durations like "7d", "2w", "1m"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration format")
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid duration value")
	}
	if value < 0 {
		return 0, fmt.Errorf("duration must not be negative")
	}

	switch unit {
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(value) * 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration unit: %c (use h, d, w, or m)", unit)
	}
}
