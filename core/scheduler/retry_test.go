package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	b := NewExponentialBackoff(time.Second, 5*time.Second, 2)
	assert.Equal(t, time.Second, b.NextRetry(0))
	assert.Equal(t, 2*time.Second, b.NextRetry(1))
	assert.Equal(t, 4*time.Second, b.NextRetry(2))
	assert.Equal(t, 5*time.Second, b.NextRetry(3))
	assert.Equal(t, time.Second, b.NextRetry(-1))

	b.Jitter = true
	for range 20 {
		d := b.NextRetry(1)
		assert.GreaterOrEqual(t, d, 1500*time.Millisecond)
		assert.LessOrEqual(t, d, 2500*time.Millisecond)
	}
}

func TestRetrierSucceedsAfterFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	var delays []time.Duration
	r := &Retrier{
		Attempts: 3,
		Strategy: NewExponentialBackoff(time.Second, 0, 2),
		Clock:    clock,
		OnRetry:  func(_ int, d time.Duration, _ error) { delays = append(delays, d) },
	}

	done := make(chan error, 1)
	calls := 0
	go func() {
		done <- r.Do(context.Background(), func(context.Context, int) error {
			calls++
			if calls < 3 {
				return errors.New("network down")
			}
			return nil
		})
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)

	require.NoError(t, <-done)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	assert.Equal(t, 3*time.Second, clock.Since(start))
}

func TestRetrierExhausted(t *testing.T) {
	r := &Retrier{Attempts: 2, Strategy: FixedDelay(0)}
	boom := errors.New("boom")
	attempts := 0
	err := r.Do(context.Background(), func(_ context.Context, attempt int) error {
		attempts = attempt
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, attempts)
}

func TestRetrierContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Retrier{Attempts: 3, Strategy: FixedDelay(time.Hour), Clock: clockwork.NewFakeClock()}
	err := r.Do(ctx, func(context.Context, int) error {
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
