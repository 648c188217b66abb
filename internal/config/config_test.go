package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Retry.BackoffBaseMS != 1000 {
		t.Errorf("expected BackoffBaseMS=1000, got %d", cfg.Retry.BackoffBaseMS)
	}

	if cfg.Retry.MaxBackoffMS != 30000 {
		t.Errorf("expected MaxBackoffMS=30000, got %d", cfg.Retry.MaxBackoffMS)
	}

	if cfg.RateLimit.RequestsPerSecond != 10 {
		t.Errorf("expected RequestsPerSecond=10, got %v", cfg.RateLimit.RequestsPerSecond)
	}

	if cfg.RateLimit.BurstLimit != 100 {
		t.Errorf("expected BurstLimit=100, got %v", cfg.RateLimit.BurstLimit)
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("expected Format=json, got %s", cfg.Logging.Format)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "missing auth type",
			modify: func(c *Config) {
				c.Auth.Type = ""
			},
			wantErr: true,
		},
		{
			name: "unsupported auth type",
			modify: func(c *Config) {
				c.Auth.Type = "api_key"
			},
			wantErr: true,
		},
		{
			name: "service account without key file",
			modify: func(c *Config) {
				c.Auth.Type = AuthServiceAccount
			},
			wantErr: true,
		},
		{
			name: "service account with key file",
			modify: func(c *Config) {
				c.Auth.Type = AuthServiceAccount
				c.Auth.KeyFile = "/etc/gmailconn/sa.json"
			},
			wantErr: false,
		},
		{
			name: "oauth2 inline credentials",
			modify: func(c *Config) {
				c.Auth.CredentialsPath = ""
				c.Auth.TokenPath = ""
				c.Auth.ClientID = "id"
				c.Auth.ClientSecret = "secret"
			},
			wantErr: false,
		},
		{
			name: "zero max attempts",
			modify: func(c *Config) {
				c.Retry.MaxAttempts = 0
			},
			wantErr: true,
		},
		{
			name: "max backoff below base",
			modify: func(c *Config) {
				c.Retry.MaxBackoffMS = 500
			},
			wantErr: true,
		},
		{
			name: "zero refill rate",
			modify: func(c *Config) {
				c.RateLimit.RequestsPerSecond = 0
			},
			wantErr: true,
		},
		{
			name: "zero burst",
			modify: func(c *Config) {
				c.RateLimit.BurstLimit = 0
			},
			wantErr: true,
		},
		{
			name: "invalid log format",
			modify: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantErr: true,
		},
		{
			name: "invalid batch concurrency",
			modify: func(c *Config) {
				c.Gmail.BatchConcurrency = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}

	for _, tt := range tests {
		result, err := expandPath(tt.input)
		if err != nil {
			t.Errorf("expandPath(%q) error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("expandPath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	data := `
[auth]
type = "service_account"
key_file = "/tmp/sa.json"
subject = "ops@example.com"

[retry]
max_attempts = 5
backoff_base_ms = 200

[rate_limit]
requests_per_second = 2.5
burst_limit = 5
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Auth.Type != AuthServiceAccount {
		t.Errorf("expected service_account, got %s", cfg.Auth.Type)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected MaxAttempts=5, got %d", cfg.Retry.MaxAttempts)
	}
	// Unset keys keep their defaults
	if cfg.Retry.MaxBackoffMS != 30000 {
		t.Errorf("expected MaxBackoffMS default 30000, got %d", cfg.Retry.MaxBackoffMS)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("expected RequestsPerSecond=2.5, got %v", cfg.RateLimit.RequestsPerSecond)
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	if _, err := Load(path, false); err == nil {
		t.Error("expected error for missing config file")
	}

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load(allowMissing) error: %v", err)
	}
	if cfg.Gmail.UserID != "me" {
		t.Errorf("expected default user id, got %q", cfg.Gmail.UserID)
	}
}

func TestLoadInvalidIsConfigurationFailure(t *testing.T) {
	dir := t.TempDir()

	for name, data := range map[string]string{
		"syntax.toml":  "[retry\nmax_attempts = 3\n",
		"invalid.toml": "[retry]\nmax_attempts = 0\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := Load(path, false)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !failure.Is(err, failure.KindConfiguration) {
			t.Errorf("%s: expected configuration failure, got %v", name, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		EnvClientID:     "client-123",
		EnvClientSecret: "s3cret",
		EnvRefreshToken: "1//refresh",
	}

	cfg.applyEnv(func(k string) string { return env[k] })

	if cfg.Auth.ClientID != "client-123" {
		t.Errorf("ClientID = %q", cfg.Auth.ClientID)
	}
	if cfg.Auth.RefreshToken != "1//refresh" {
		t.Errorf("RefreshToken = %q", cfg.Auth.RefreshToken)
	}
	if cfg.Auth.KeyFile != "" {
		t.Errorf("unset variables must not override, got KeyFile=%q", cfg.Auth.KeyFile)
	}
}

func TestPolicy(t *testing.T) {
	cfg := Default()
	p := cfg.Retry.Policy()

	if p.BackoffBase != time.Second {
		t.Errorf("BackoffBase = %s, want 1s", p.BackoffBase)
	}
	if p.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %s, want 30s", p.MaxBackoff)
	}

	ec := cfg.ExecutorConfig()
	if ec.MaxWait != 30*time.Second {
		t.Errorf("MaxWait = %s, want 30s", ec.MaxWait)
	}
}
