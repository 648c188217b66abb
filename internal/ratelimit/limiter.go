// Package ratelimit implements token-bucket admission control for outgoing
// API calls.
//
// A Limiter is an owned value: executors that should share a budget must be
// given the same *Limiter explicitly. Waiters are not queued, so there is no
// first-come-first-served guarantee and a waiter can starve while others keep
// winning the race for freshly refilled tokens.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

var (
	// ErrWaitExceeded is returned by Wait when admission would take longer than maxWait
	ErrWaitExceeded = errors.New("rate limit wait exceeded")

	// ErrCostExceedsCapacity is returned by Wait for a cost the bucket can never hold
	ErrCostExceedsCapacity = errors.New("cost exceeds bucket capacity")
)

// Decision is the result of an admission check
type Decision struct {
	Granted    bool
	RetryAfter time.Duration // Zero when granted
}

// Limiter is a token bucket safe for concurrent use
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	rate       float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a full bucket holding burst tokens, refilled at rate tokens/second
func New(rate, burst float64, opts ...Option) (*Limiter, error) {
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return nil, failure.Configf("rate_limit.requests_per_second must be a positive number, got %v", rate)
	}
	if burst <= 0 || math.IsInf(burst, 0) || math.IsNaN(burst) {
		return nil, failure.Configf("rate_limit.burst_limit must be a positive number, got %v", burst)
	}

	l := &Limiter{
		tokens:   burst,
		capacity: burst,
		rate:     rate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastRefill = l.now()

	return l, nil
}

// TryAcquire debits cost tokens if they are available. Denial is a normal
// result: RetryAfter is how long until cost tokens will have accumulated.
func (l *Limiter) TryAcquire(cost float64) Decision {
	if cost <= 0 {
		return Decision{Granted: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= cost {
		l.tokens -= cost
		return Decision{Granted: true}
	}

	if cost > l.capacity {
		return Decision{}
	}

	needed := cost - l.tokens
	wait := time.Duration(math.Ceil(needed / l.rate * float64(time.Second)))
	return Decision{RetryAfter: wait}
}

// Wait blocks until one token is granted
func (l *Limiter) Wait(ctx context.Context, maxWait time.Duration) error {
	return l.WaitN(ctx, 1, maxWait)
}

// WaitN blocks until cost tokens are granted, ctx is done, or the total wait
// would exceed maxWait. A maxWait of zero means no bound.
func (l *Limiter) WaitN(ctx context.Context, cost float64, maxWait time.Duration) error {
	if cost > l.capacity {
		return ErrCostExceedsCapacity
	}

	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d := l.TryAcquire(cost)
		if d.Granted {
			return nil
		}

		if maxWait > 0 && waited+d.RetryAfter > maxWait {
			return ErrWaitExceeded
		}

		timer := time.NewTimer(d.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		waited += d.RetryAfter
	}
}

// Tokens returns the currently available tokens after refill
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// Capacity returns the burst size
func (l *Limiter) Capacity() float64 {
	return l.capacity
}

// Rate returns the refill rate in tokens per second
func (l *Limiter) Rate() float64 {
	return l.rate
}

// refill must be called with mu held
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		// Clock went backwards or no time passed; keep lastRefill monotonic.
		return
	}
	l.lastRefill = now

	l.tokens = math.Min(l.capacity, l.tokens+elapsed*l.rate)
}
