package redis

import (
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/rentoso/log"
)

type Option func(*clientOptions)

type clientOptions struct {
	hooks         []redis.Hook
	enableTracing bool
	enableMetrics bool
	tracingOpts   []redisotel.TracingOption
	metricsOpts   []redisotel.MetricsOption
	debug         bool
	slowThreshold time.Duration
	logger        *log.Logger
	skipPing      bool
}

func WithHooks(hooks ...redis.Hook) Option {
	return func(o *clientOptions) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithTracing 启用 OpenTelemetry 追踪
func WithTracing(opts ...redisotel.TracingOption) Option {
	return func(o *clientOptions) {
		o.enableTracing = true
		o.tracingOpts = opts
	}
}

// WithMetrics 启用 OpenTelemetry 指标
func WithMetrics(opts ...redisotel.MetricsOption) Option {
	return func(o *clientOptions) {
		o.enableMetrics = true
		o.metricsOpts = opts
	}
}

// WithDebug 记录每条命令，超过 slowThreshold 的命令记为警告
func WithDebug(slowThreshold time.Duration) Option {
	return func(o *clientOptions) {
		o.debug = true
		o.slowThreshold = slowThreshold
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithoutPing 创建时不检测连接
func WithoutPing() Option {
	return func(o *clientOptions) {
		o.skipPing = true
	}
}
