package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// Environment variables that override auth settings
const (
	EnvClientID     = "GMAIL_CLIENT_ID"
	EnvClientSecret = "GMAIL_CLIENT_SECRET"
	EnvRefreshToken = "GMAIL_REFRESH_TOKEN"
	EnvKeyFile      = "GMAIL_KEY_FILE"
	EnvSubject      = "GMAIL_SUBJECT"
)

// Load reads and parses the configuration file. A missing file is not an
// error when allowMissing is set; defaults plus environment are used instead.
func Load(path string, allowMissing bool) (*Config, error) {
	// Pick up credentials from a .env file in the working directory, if any
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Expand path
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	cfg := Default()

	// Read file
	data, err := os.ReadFile(expandedPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, failure.Configf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err) && allowMissing:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("config file not found: %s (run 'gmailconn config init' to create)", expandedPath)
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv(os.Getenv)

	// Expand paths in config
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, failure.Configf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays auth settings from the environment
func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		key string
		dst *string
	}{
		{EnvClientID, &c.Auth.ClientID},
		{EnvClientSecret, &c.Auth.ClientSecret},
		{EnvRefreshToken, &c.Auth.RefreshToken},
		{EnvKeyFile, &c.Auth.KeyFile},
		{EnvSubject, &c.Auth.Subject},
	}

	for _, o := range overrides {
		if v := getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, path[1:]), nil
}

// expandPaths expands ~ in all path fields
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Auth.CredentialsPath,
		&c.Auth.TokenPath,
		&c.Auth.KeyFile,
		&c.Cache.Path,
	} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}

	if c.Logging.Output != "stdout" && c.Logging.Output != "stderr" {
		expanded, err := expandPath(c.Logging.Output)
		if err != nil {
			return err
		}
		c.Logging.Output = expanded
	}

	return nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Auth validation
	switch c.Auth.Type {
	case AuthOAuth2:
		hasInline := c.Auth.ClientID != "" && c.Auth.ClientSecret != ""
		if !hasInline && c.Auth.CredentialsPath == "" {
			errs = append(errs, errors.New("auth: oauth2 needs client_id/client_secret or credentials_path"))
		}
		if !hasInline && c.Auth.TokenPath == "" {
			errs = append(errs, errors.New("auth.token_path is required with credentials_path"))
		}
	case AuthServiceAccount:
		if c.Auth.KeyFile == "" {
			errs = append(errs, errors.New("auth.key_file is required for service_account"))
		}
	case "":
		errs = append(errs, errors.New("auth.type is required"))
	default:
		errs = append(errs, fmt.Errorf("auth.type must be 'oauth2' or 'service_account', got '%s'", c.Auth.Type))
	}

	// Gmail validation
	if c.Gmail.UserID == "" {
		errs = append(errs, errors.New("gmail.user_id is required"))
	}
	if c.Gmail.MaxResults < 1 || c.Gmail.MaxResults > 500 {
		errs = append(errs, errors.New("gmail.max_results must be between 1 and 500"))
	}
	if c.Gmail.BatchConcurrency < 1 || c.Gmail.BatchConcurrency > 100 {
		errs = append(errs, errors.New("gmail.batch_concurrency must be between 1 and 100"))
	}

	// Retry validation
	if err := c.Retry.Policy().Validate(); err != nil {
		errs = append(errs, err)
	}

	// Rate limit validation
	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_second must be positive"))
	}
	if c.RateLimit.BurstLimit < 1 {
		errs = append(errs, errors.New("rate_limit.burst_limit must be at least 1"))
	}
	if c.RateLimit.MaxWaitMS < 0 {
		errs = append(errs, errors.New("rate_limit.max_wait_ms must not be negative"))
	}

	// Logging validation
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got '%s'", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got '%s'", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errs = append(errs, errors.New("logging.output is required"))
	}

	// Cache validation
	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required when the cache is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// EnsureDirectories creates necessary directories for the token and cache
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Auth.TokenPath != "" {
		dirs = append(dirs, filepath.Dir(c.Auth.TokenPath))
	}
	if c.Cache.Enabled {
		dirs = append(dirs, filepath.Dir(c.Cache.Path))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
