package scheduler

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

// Strategy 重试策略
type Strategy interface {
	// NextRetry 第 retryCount 次重试前的等待时间，从 0 开始
	NextRetry(retryCount int) time.Duration
}

// ExponentialBackoff 指数退避: delay = min(base * multiplier^n, max)
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool // ±25%
}

func NewExponentialBackoff(base, maxDelay time.Duration, multiplier float64) *ExponentialBackoff {
	return &ExponentialBackoff{BaseDelay: base, MaxDelay: maxDelay, Multiplier: multiplier}
}

func (e *ExponentialBackoff) NextRetry(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	delay := float64(e.BaseDelay) * math.Pow(e.Multiplier, float64(retryCount))
	if e.MaxDelay > 0 && delay > float64(e.MaxDelay) {
		delay = float64(e.MaxDelay)
	}
	if e.Jitter && delay > 0 {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}
	return time.Duration(max(delay, 0))
}

// FixedDelay 固定间隔
type FixedDelay time.Duration

func (f FixedDelay) NextRetry(int) time.Duration {
	return time.Duration(f)
}

// Retrier 按策略重试，等待使用可替换的时钟
type Retrier struct {
	Attempts int
	Strategy Strategy
	Clock    clockwork.Clock
	// OnRetry 每次失败后、等待前调用
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do 最多执行 Attempts 次，返回最后一次的错误；ctx 取消时立即返回
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	clock := r.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := max(r.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		delay := r.Strategy.NextRetry(attempt - 1)
		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, err)
		}
		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
