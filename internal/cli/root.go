package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/gmailconn/internal/email/gmail"
	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

var (
	// Version info set from main
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Global flags
	configPath string
	outputFmt  string
	logLevel   string
)

// SetVersionInfo sets version information from build flags
func SetVersionInfo(v, c, b string) {
	version = v
	commit = c
	buildTime = b
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gmailconn",
	Short: "A resilient command-line client for the Gmail API",
	Long: `gmailconn lists, reads, fetches and sends Gmail messages.

Every API call is rate limited with a token bucket, retried with
exponential backoff on transient failures, and logged as structured
JSON with a per-call execution id.

Authentication uses OAuth2 (client secrets file or refresh token) or a
service account with optional domain-wide delegation.`,
	SilenceUsage: true,
}

// Execute runs the root command. Interrupts cancel in-flight calls.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printHint(err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: ~/.config/gmailconn/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override logging.level (trace, debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(home, ".config", "gmailconn", "config.toml")
	}
}

// printHint suggests a fix for failures the user can act on
func printHint(err error) {
	switch {
	case gmail.IsAuthError(err):
		fmt.Fprintln(os.Stderr, "Hint: credentials were rejected. Check the [auth] section or delete the cached token to re-authenticate.")
	case failure.CategoryOf(err) == failure.CategoryRateLimit:
		fmt.Fprintln(os.Stderr, "Hint: the local rate limit is saturated. Raise rate_limit.max_wait_ms or lower concurrency.")
	case gmail.IsQuotaError(err):
		fmt.Fprintln(os.Stderr, "Hint: Gmail API quota exhausted. Wait a while or raise retry.max_attempts.")
	case failure.Is(err, failure.KindConfiguration):
		fmt.Fprintln(os.Stderr, "Hint: run 'gmailconn config show' to inspect the effective configuration.")
	}
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "gmailconn %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", buildTime)
	},
}
