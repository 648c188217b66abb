package config

import (
	"time"

	"github.com/vijay-prabhu/gmailconn/internal/executor"
	"github.com/vijay-prabhu/gmailconn/internal/retry"
)

// Auth types
const (
	AuthOAuth2         = "oauth2"
	AuthServiceAccount = "service_account"
)

// Config represents the application configuration
type Config struct {
	Auth      AuthConfig      `toml:"auth"`
	Gmail     GmailConfig     `toml:"gmail"`
	Retry     RetryConfig     `toml:"retry"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Logging   LoggingConfig   `toml:"logging"`
	Cache     CacheConfig     `toml:"cache"`
}

// AuthConfig selects and configures the credential source
type AuthConfig struct {
	Type string `toml:"type"` // "oauth2" or "service_account"

	// OAuth2 with inline client credentials and a refresh token.
	// GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET and GMAIL_REFRESH_TOKEN override these.
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	RefreshToken string `toml:"refresh_token"`

	// OAuth2 with a downloaded client secrets file and a cached token
	CredentialsPath string `toml:"credentials_path"`
	TokenPath       string `toml:"token_path"`

	// Service account
	KeyFile string `toml:"key_file"`
	Subject string `toml:"subject"` // User to impersonate (domain-wide delegation)
}

// GmailConfig contains Gmail-specific settings
type GmailConfig struct {
	UserID           string `toml:"user_id"`
	MaxResults       int    `toml:"max_results"`
	BatchConcurrency int    `toml:"batch_concurrency"`
	Endpoint         string `toml:"endpoint"` // Override API endpoint (testing, proxies)
}

// RetryConfig contains retry policy settings
type RetryConfig struct {
	MaxAttempts   int     `toml:"max_attempts"`
	BackoffBaseMS int     `toml:"backoff_base_ms"`
	MaxBackoffMS  int     `toml:"max_backoff_ms"`
	Factor        float64 `toml:"factor"`
	Jitter        float64 `toml:"jitter"` // Fraction in [0, 1); jittered delays stay within max_backoff_ms
}

// RateLimitConfig contains token bucket settings
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BurstLimit        float64 `toml:"burst_limit"`
	MaxWaitMS         int     `toml:"max_wait_ms"` // 0 waits indefinitely
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
	Output string `toml:"output"` // "stderr", "stdout" or a file path
}

// CacheConfig contains local message cache settings
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Policy converts the retry settings into a retry policy
func (r RetryConfig) Policy() retry.Config {
	return retry.Config{
		MaxAttempts: r.MaxAttempts,
		BackoffBase: time.Duration(r.BackoffBaseMS) * time.Millisecond,
		MaxBackoff:  time.Duration(r.MaxBackoffMS) * time.Millisecond,
		Factor:      r.Factor,
		Jitter:      r.Jitter,
	}
}

// MaxWait returns the rate limit wait bound as a duration
func (r RateLimitConfig) MaxWait() time.Duration {
	return time.Duration(r.MaxWaitMS) * time.Millisecond
}

// ExecutorConfig returns the executor settings derived from this config
func (c *Config) ExecutorConfig() executor.Config {
	return executor.Config{
		Retry:   c.Retry.Policy(),
		MaxWait: c.RateLimit.MaxWait(),
	}
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			Type:            AuthOAuth2,
			CredentialsPath: "~/.config/gmailconn/credentials.json",
			TokenPath:       "~/.config/gmailconn/token.json",
		},
		Gmail: GmailConfig{
			UserID:           "me",
			MaxResults:       100,
			BatchConcurrency: 10,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BackoffBaseMS: 1000,
			MaxBackoffMS:  30000,
			Factor:        2,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstLimit:        100,
			MaxWaitMS:         30000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Cache: CacheConfig{
			Enabled: false,
			Path:    "~/.local/share/gmailconn/cache.db",
		},
	}
}
