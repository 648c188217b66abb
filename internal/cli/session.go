package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/vijay-prabhu/gmailconn/internal/config"
	"github.com/vijay-prabhu/gmailconn/internal/database"
	"github.com/vijay-prabhu/gmailconn/internal/email/gmail"
	"github.com/vijay-prabhu/gmailconn/internal/executor"
	"github.com/vijay-prabhu/gmailconn/internal/logging"
	"github.com/vijay-prabhu/gmailconn/internal/ratelimit"
)

// session holds everything a command needs to talk to Gmail
type session struct {
	cfg      *config.Config
	log      zerolog.Logger
	cache    *database.DB
	provider *gmail.Provider

	closers []io.Closer
}

// loadConfig loads the config file, applying the --log-level override
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, true)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openSession loads the config and opens a session from it
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newSession(ctx, cfg)
}

// newSession builds the logger, limiter, executor, optional cache and an
// authenticated provider
func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}

	log, closer, err := logging.New(cfg.Logging, "gmailconn")
	if err != nil {
		return nil, err
	}
	s.log = log
	s.closers = append(s.closers, closer)

	limiter, err := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstLimit)
	if err != nil {
		s.Close()
		return nil, err
	}

	exec, err := executor.New(limiter, cfg.ExecutorConfig(), executor.WithLogger(log))
	if err != nil {
		s.Close()
		return nil, err
	}

	opts := []gmail.Option{gmail.WithLogger(log)}
	if cfg.Cache.Enabled {
		db, err := database.Open(cfg.Cache.Path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		s.cache = db
		s.closers = append(s.closers, db)
		opts = append(opts, gmail.WithCache(db))
	}

	s.provider = gmail.New(cfg, exec, opts...)
	if err := s.provider.Authenticate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	return s, nil
}

// Close releases the cache and log file
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
}
