package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/gmailconn/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server (stdio transport)",
	Long: `Start the MCP (Model Context Protocol) server using stdio transport.

This lets AI assistants list, read, search and send Gmail messages through
the same rate limiter and retry policy as the CLI. Logs go to stderr or a
file; stdout carries the protocol.

Example client configuration:

{
  "mcpServers": {
    "gmail": {
      "command": "/path/to/gmailconn",
      "args": ["mcp"]
    }
  }
}`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Logging.Output == "stdout" {
		return fmt.Errorf("logging.output must not be stdout when serving MCP over stdio")
	}

	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := []mcp.Option{
		mcp.WithLogger(s.log.With().Str("component", "mcp").Logger()),
		mcp.WithVersion(version),
		mcp.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
	}
	if s.cache != nil {
		opts = append(opts, mcp.WithCache(s.cache))
	}

	return mcp.New(s.provider, opts...).Serve(ctx)
}
