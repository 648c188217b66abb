// Package executor runs API calls under admission control and a retry policy.
//
// Execute acquires one token from the rate limiter (waiting at most MaxWait),
// then invokes the operation under the retry policy. Every attempt and every
// terminal outcome is logged. Failures are always returned as *failure.Error
// carrying the operation name.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vijay-prabhu/gmailconn/internal/failure"
	"github.com/vijay-prabhu/gmailconn/internal/ratelimit"
	"github.com/vijay-prabhu/gmailconn/internal/retry"
)

// Operation is one unit of work, invoked once per attempt
type Operation[T any] func(ctx context.Context) (T, error)

// Config configures an Executor
type Config struct {
	Retry   retry.Config
	MaxWait time.Duration // Upper bound on rate-limit waiting per call, 0 for none
	Cost    float64       // Tokens debited per call, defaults to 1
}

// Executor composes a rate limiter and a retry policy
type Executor struct {
	limiter *ratelimit.Limiter
	cfg     Config
	log     zerolog.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the event sink; the default discards everything
func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// New creates an executor. The limiter may be shared with other executors.
func New(limiter *ratelimit.Limiter, cfg Config, opts ...Option) (*Executor, error) {
	if limiter == nil {
		return nil, failure.Configf("executor requires a rate limiter")
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxWait < 0 {
		return nil, failure.Configf("rate_limit.max_wait must not be negative, got %s", cfg.MaxWait)
	}
	if cfg.Cost <= 0 {
		cfg.Cost = 1
	}

	e := &Executor{
		limiter: limiter,
		cfg:     cfg,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Limiter returns the limiter gating this executor
func (e *Executor) Limiter() *ratelimit.Limiter {
	return e.limiter
}

// Execute runs op under e's admission control and retry policy
func Execute[T any](ctx context.Context, e *Executor, name string, op Operation[T]) (T, error) {
	var zero T

	log := e.log.With().
		Str("op", name).
		Str("execution_id", uuid.NewString()).
		Logger()

	if err := e.admit(ctx, log); err != nil {
		return zero, failure.WithOp(err, name)
	}

	cfg := e.cfg.Retry
	cfg.OnAttempt = func(a retry.Attempt) {
		logAttempt(log, a)
		if e.cfg.Retry.OnAttempt != nil {
			e.cfg.Retry.OnAttempt(a)
		}
	}

	started := time.Now()
	result, err := retry.Do[T](ctx, cfg, op)
	elapsed := time.Since(started)

	if err == nil {
		log.Info().Dur("elapsed", elapsed).Msg("operation succeeded")
		return result, nil
	}

	err = failure.WithOp(err, name)
	var fe *failure.Error
	errors.As(err, &fe)

	switch fe.Kind {
	case failure.KindCancelled:
		log.Warn().Err(fe.Err).Dur("elapsed", elapsed).Msg("operation cancelled")
	default:
		log.Error().
			Err(fe.Err).
			Str("category", string(fe.Category)).
			Int("attempts", fe.Attempts).
			Dur("elapsed", elapsed).
			Msg("operation failed")
	}

	return zero, err
}

// admit waits for a token, translating limiter errors into failures
func (e *Executor) admit(ctx context.Context, log zerolog.Logger) error {
	d := e.limiter.TryAcquire(e.cfg.Cost)
	if d.Granted {
		return nil
	}
	log.Debug().Dur("retry_after", d.RetryAfter).Msg("rate limited, waiting for tokens")

	err := e.limiter.WaitN(ctx, e.cfg.Cost, e.cfg.MaxWait)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("cancelled while waiting for rate limiter")
		return failure.Cancelled(err)
	default:
		log.Error().Err(err).Dur("max_wait", e.cfg.MaxWait).Msg("rate limiter refused admission")
		return &failure.Error{Kind: failure.KindTerminal, Category: failure.CategoryRateLimit, Err: err}
	}
}

func logAttempt(log zerolog.Logger, a retry.Attempt) {
	if a.Err == nil {
		log.Debug().
			Int("attempt", a.Number).
			Str("outcome", "success").
			Dur("duration", a.Duration).
			Msg("attempt finished")
		return
	}

	ev := log.Warn().
		Int("attempt", a.Number).
		Str("outcome", "failure").
		Str("category", string(failure.CategoryOf(a.Err))).
		Err(a.Err).
		Dur("duration", a.Duration)
	if a.NextDelay > 0 {
		ev = ev.Dur("next_delay", a.NextDelay)
	}
	ev.Msg("attempt failed")
}
