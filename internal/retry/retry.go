// Package retry runs an operation until it succeeds, fails permanently, or
// exhausts its attempt budget, sleeping an exponentially growing delay
// between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// Config configures the retry policy
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// BackoffBase is the delay after the first failed attempt
	BackoffBase time.Duration
	// MaxBackoff caps every delay
	MaxBackoff time.Duration
	// Factor is the growth multiplier between consecutive delays
	Factor float64
	// Jitter randomizes each delay by ±Jitter of its value (0 disables).
	// Randomized delays are still capped at MaxBackoff.
	Jitter float64
	// RetryIf decides whether an error may be retried; nil uses failure.IsRetriable
	RetryIf func(error) bool
	// OnAttempt is called after every attempt
	OnAttempt func(Attempt)
}

// Attempt describes one finished invocation of the operation
type Attempt struct {
	Number    int
	StartedAt time.Time
	Duration  time.Duration
	Err       error         // nil on success
	NextDelay time.Duration // Delay before the next attempt, 0 if none follows
	Final     bool          // No further attempt will be made
}

// DefaultConfig returns the connector defaults: 3 attempts, 1s base, 30s cap
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BackoffBase: time.Second,
		MaxBackoff:  30 * time.Second,
		Factor:      2,
	}
}

// Validate checks the configuration ranges
func (c Config) Validate() error {
	var errs []error

	if c.MaxAttempts < 1 {
		errs = append(errs, failure.Configf("retry.max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.BackoffBase <= 0 {
		errs = append(errs, failure.Configf("retry.backoff_base must be positive, got %s", c.BackoffBase))
	}
	if c.MaxBackoff < c.BackoffBase {
		errs = append(errs, failure.Configf("retry.max_backoff (%s) must not be below retry.backoff_base (%s)", c.MaxBackoff, c.BackoffBase))
	}
	if c.Factor <= 1 {
		errs = append(errs, failure.Configf("retry.factor must be greater than 1, got %v", c.Factor))
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		errs = append(errs, failure.Configf("retry.jitter must be in [0, 1), got %v", c.Jitter))
	}

	return errors.Join(errs...)
}

// newBackOff builds the delay schedule. MaxElapsedTime is disabled so the
// attempt counter alone bounds the loop.
func (c Config) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.BackoffBase,
		RandomizationFactor: c.Jitter,
		Multiplier:          c.Factor,
		MaxInterval:         c.MaxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// nextDelay returns the next scheduled delay. backoff/v4 randomizes after
// applying MaxInterval, so the jittered value is clamped again here.
func (c Config) nextDelay(b *backoff.ExponentialBackOff) time.Duration {
	return min(b.NextBackOff(), c.MaxBackoff)
}

// Delays returns the first n delays of the schedule. With jitter enabled the
// values are randomized.
func (c Config) Delays(n int) []time.Duration {
	b := c.newBackOff()
	delays := make([]time.Duration, n)
	for i := range delays {
		delays[i] = c.nextDelay(b)
	}
	return delays
}

// Do invokes op until it succeeds or the policy gives up. On exhaustion it
// returns a terminal failure wrapping the last error. If ctx is cancelled
// during a backoff sleep it returns a cancelled failure.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := cfg.Validate(); err != nil {
		return zero, err
	}

	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = failure.IsRetriable
	}

	schedule := cfg.newBackOff()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, failure.Cancelled(err)
		}

		started := time.Now()
		result, err := op(ctx)
		rec := Attempt{
			Number:    attempt,
			StartedAt: started,
			Duration:  time.Since(started),
			Err:       err,
		}

		if err == nil {
			rec.Final = true
			notify(cfg, rec)
			return result, nil
		}

		// An operation aborted by our own context is a cancellation, not a failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			rec.Final = true
			notify(cfg, rec)
			return zero, failure.Cancelled(ctxErr)
		}

		if attempt >= cfg.MaxAttempts || !retryIf(err) {
			rec.Final = true
			notify(cfg, rec)
			return zero, failure.Terminal(err, attempt)
		}

		delay := cfg.nextDelay(schedule)
		rec.NextDelay = delay
		notify(cfg, rec)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, failure.Cancelled(ctx.Err())
		case <-timer.C:
		}
	}
}

func notify(cfg Config, a Attempt) {
	if cfg.OnAttempt != nil {
		cfg.OnAttempt(a)
	}
}
