package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		rate  float64
		burst float64
	}{
		{"zero rate", 0, 10},
		{"negative rate", -1, 10},
		{"zero burst", 10, 0},
		{"negative burst", 10, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.rate, tt.burst)
			require.Error(t, err)
			assert.Nil(t, l)
			assert.Equal(t, failure.KindConfiguration, failure.KindOf(err))
		})
	}
}

func TestBurstAllowance(t *testing.T) {
	clock := newFakeClock()
	l, err := New(1, 5, WithClock(clock.Now))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		d := l.TryAcquire(1)
		assert.True(t, d.Granted, "acquisition %d should be granted", i+1)
		assert.Zero(t, d.RetryAfter)
	}

	d := l.TryAcquire(1)
	assert.False(t, d.Granted)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestBurstWithMixedCosts(t *testing.T) {
	clock := newFakeClock()
	l, err := New(10, 100, WithClock(clock.Now))
	require.NoError(t, err)

	costs := []float64{40, 30, 20, 10}
	for _, c := range costs {
		assert.True(t, l.TryAcquire(c).Granted)
	}
	assert.InDelta(t, 0, l.Tokens(), 1e-9)
}

func TestRefillAfterWaiting(t *testing.T) {
	clock := newFakeClock()
	l, err := New(2, 2, WithClock(clock.Now))
	require.NoError(t, err)

	require.True(t, l.TryAcquire(2).Granted)
	require.False(t, l.TryAcquire(1).Granted)

	// One token worth of time at 2 tokens/second
	clock.Advance(500 * time.Millisecond)
	assert.True(t, l.TryAcquire(1).Granted)
	assert.False(t, l.TryAcquire(1).Granted)
}

func TestRetryAfterReflectsPartialTokens(t *testing.T) {
	clock := newFakeClock()
	l, err := New(4, 4, WithClock(clock.Now))
	require.NoError(t, err)

	require.True(t, l.TryAcquire(4).Granted)
	clock.Advance(125 * time.Millisecond) // half a token

	d := l.TryAcquire(1)
	assert.False(t, d.Granted)
	assert.Equal(t, 125*time.Millisecond, d.RetryAfter)
}

func TestTokensNeverExceedCapacity(t *testing.T) {
	clock := newFakeClock()
	l, err := New(100, 3, WithClock(clock.Now))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, 3.0, l.Tokens())

	require.True(t, l.TryAcquire(1).Granted)
	clock.Advance(time.Minute)
	assert.Equal(t, 3.0, l.Tokens())
}

func TestClockGoingBackwardsDoesNotRefill(t *testing.T) {
	clock := newFakeClock()
	l, err := New(1, 2, WithClock(clock.Now))
	require.NoError(t, err)

	require.True(t, l.TryAcquire(2).Granted)
	clock.Advance(-time.Minute)
	assert.False(t, l.TryAcquire(1).Granted)
	assert.GreaterOrEqual(t, l.Tokens(), 0.0)
}

func TestCostHandling(t *testing.T) {
	clock := newFakeClock()
	l, err := New(1, 2, WithClock(clock.Now))
	require.NoError(t, err)

	assert.True(t, l.TryAcquire(0).Granted)
	assert.Equal(t, 2.0, l.Tokens(), "zero cost must not debit")

	d := l.TryAcquire(3)
	assert.False(t, d.Granted)
	assert.Zero(t, d.RetryAfter)

	err = l.WaitN(context.Background(), 3, 0)
	assert.ErrorIs(t, err, ErrCostExceedsCapacity)
}

func TestConcurrentAcquireNeverOverspends(t *testing.T) {
	clock := newFakeClock()
	l, err := New(1, 50, WithClock(clock.Now))
	require.NoError(t, err)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire(1).Granted {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), granted.Load())
	tokens := l.Tokens()
	assert.GreaterOrEqual(t, tokens, 0.0)
	assert.LessOrEqual(t, tokens, l.Capacity())
}

func TestWaitGrantsAfterRefill(t *testing.T) {
	l, err := New(100, 1)
	require.NoError(t, err)

	require.True(t, l.TryAcquire(1).Granted)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), time.Second))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestWaitExceedsMaxWait(t *testing.T) {
	l, err := New(1, 1)
	require.NoError(t, err)

	require.True(t, l.TryAcquire(1).Granted)

	err = l.Wait(context.Background(), 10*time.Millisecond)
	assert.True(t, errors.Is(err, ErrWaitExceeded))
}

func TestWaitCancelled(t *testing.T) {
	l, err := New(0.1, 1)
	require.NoError(t, err)
	require.True(t, l.TryAcquire(1).Granted)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err = l.Wait(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAccessors(t *testing.T) {
	l, err := New(10, 100)
	require.NoError(t, err)
	assert.Equal(t, 10.0, l.Rate())
	assert.Equal(t, 100.0, l.Capacity())
}
