package rate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const slidingWindowLua = `
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`

var slidingWindowScript = redis.NewScript(slidingWindowLua)

// SlidingWindowLimiter 基于 Redis 有序集合，多个进程共享计数
type SlidingWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	config Config
	clock  clockwork.Clock
}

func NewSlidingWindowLimiter(client redis.UniversalClient, prefix string, cfg Config) (*SlidingWindowLimiter, error) {
	if err := cfg.init(); err != nil {
		return nil, err
	}
	return &SlidingWindowLimiter{
		client: client,
		prefix: prefix,
		config: cfg,
		clock:  clockwork.NewRealClock(),
	}, nil
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.clock.Now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key},
		l.config.Window.Milliseconds(), l.config.Limit, now, uuid.NewString()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// WindowLimiter 进程内实现，未配置 Redis 时使用
type WindowLimiter struct {
	config Config
	clock  clockwork.Clock
	mu     sync.Mutex
	hits   map[string][]time.Time
}

func NewWindowLimiter(cfg Config, clock clockwork.Clock) (*WindowLimiter, error) {
	if err := cfg.init(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WindowLimiter{
		config: cfg,
		clock:  clock,
		hits:   make(map[string][]time.Time),
	}, nil
}

func (l *WindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	cutoff := now.Add(-l.config.Window)
	hits := l.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]
	if len(hits) >= l.config.Limit {
		l.hits[key] = hits
		return false, nil
	}
	l.hits[key] = append(hits, now)
	return true, nil
}

var _ Limiter = (*WindowLimiter)(nil)
