package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/gmailconn/internal/email"
	"github.com/vijay-prabhu/gmailconn/internal/failure"
	"github.com/vijay-prabhu/gmailconn/internal/output"
)

var batchCmd = &cobra.Command{
	Use:   "batch [message-id...]",
	Short: "Fetch several messages concurrently",
	Long: `Fetch many messages at once. Each fetch is rate limited and retried on
its own; one failure does not stop the others. Concurrency is bounded by
gmail.batch_concurrency.

With no arguments, IDs are read from stdin, one per line.

Examples:
  gmailconn batch 18c2f0a9 18c2f0b1 18c2f0c7
  gmailconn list --ids-only -o json | jq -r '.messages[].id' | gmailconn batch -o json`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ids := args
	if len(ids) == 0 {
		var err error
		if ids, err = readIDs(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no message IDs given")
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	terminal := NewTerminal()
	stop := terminal.Spin(fmt.Sprintf("Fetching %d messages", len(ids)))
	results := s.provider.BatchGetMessages(ctx, ids)
	stop()

	if err := output.OutputTo(cmd.OutOrStdout(), outputFmt, results); err != nil {
		return err
	}

	return summarizeBatch(terminal, results)
}

// summarizeBatch prints failure counts by category and returns an error when
// every fetch failed
func summarizeBatch(t *Terminal, results []email.BatchResult) error {
	counts := map[failure.Category]int{}
	var order []failure.Category
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		failed++
		cat := failure.CategoryOf(r.Err)
		if counts[cat] == 0 {
			order = append(order, cat)
		}
		counts[cat]++
	}

	if failed == 0 {
		return nil
	}

	parts := make([]string, len(order))
	for i, cat := range order {
		parts[i] = t.Color(CategoryColor(cat), fmt.Sprintf("%d %s", counts[cat], cat))
	}
	t.Printf("%d of %d failed: %s\n", failed, len(results), strings.Join(parts, ", "))

	if failed == len(results) {
		return fmt.Errorf("all %d fetches failed", failed)
	}
	return nil
}

// readIDs reads whitespace-separated message IDs
func readIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		ids = append(ids, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read IDs: %w", err)
	}
	return ids, nil
}
