package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration (secrets redacted)",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "Config file already exists at %s\n", configPath)
		fmt.Fprintln(out, "Use 'gmailconn config show' to view current configuration")
		return nil
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(out, "Created config file at %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Create OAuth 2.0 credentials (Desktop app) in the Google Cloud console")
	fmt.Fprintln(out, "  2. Save the downloaded JSON to auth.credentials_path")
	fmt.Fprintln(out, "     or set GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET and GMAIL_REFRESH_TOKEN")
	fmt.Fprintln(out, "  3. Run 'gmailconn list' to authenticate and fetch messages")

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	redact := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	redact(&cfg.Auth.ClientSecret)
	redact(&cfg.Auth.RefreshToken)

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "# Config file: %s\n\n", configPath)
	} else {
		fmt.Fprintf(out, "# No config file at %s; showing defaults and environment\n\n", configPath)
	}
	fmt.Fprint(out, string(data))
	return nil
}

const defaultConfig = `# gmailconn configuration

[auth]
# "oauth2" or "service_account"
type = "oauth2"

# OAuth2 with a client secrets file; the token is cached after the first
# browser consent
credentials_path = "~/.config/gmailconn/credentials.json"
token_path = "~/.config/gmailconn/token.json"

# OAuth2 with inline credentials (or GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET /
# GMAIL_REFRESH_TOKEN in the environment or a .env file)
# client_id = ""
# client_secret = ""
# redirect_uri = ""
# refresh_token = ""

# Service account (domain-wide delegation via subject)
# key_file = "~/.config/gmailconn/service-account.json"
# subject = "user@example.com"

[gmail]
user_id = "me"
max_results = 100        # messages per list
batch_concurrency = 10   # parallel fetches in batch

[retry]
max_attempts = 3
backoff_base_ms = 1000
max_backoff_ms = 30000
factor = 2.0
jitter = 0.0             # 0 gives deterministic delays

[rate_limit]
requests_per_second = 10.0
burst_limit = 100.0
max_wait_ms = 30000      # give up waiting for a token after this long

[logging]
level = "info"           # trace, debug, info, warn, error
format = "json"          # json or console
output = "stderr"        # stderr, stdout or a file path

[cache]
enabled = false
path = "~/.local/share/gmailconn/cache.db"
`
