package cli

import (
	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/gmailconn/internal/output"
)

var getCmd = &cobra.Command{
	Use:   "get <message-id>",
	Short: "Show a single message",
	Long: `Fetch one message by ID and print its headers and body.

When the cache is enabled, a cached copy is returned without an API call.

Examples:
  gmailconn get 18c2f0a9b1d4e5f6
  gmailconn get 18c2f0a9b1d4e5f6 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	msg, err := s.provider.GetMessage(ctx, args[0])
	if err != nil {
		return err
	}

	return output.OutputTo(cmd.OutOrStdout(), outputFmt, msg)
}
