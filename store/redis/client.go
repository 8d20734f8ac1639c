package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/store"
)

var (
	ErrInvalidConfig  = errors.New("redis: invalid config")
	ErrEmptyAddrs     = errors.New("redis: addrs cannot be empty")
	ErrInvalidTimeout = errors.New("redis: timeout cannot be negative")
)

// Client Redis 客户端，同时实现 store.KV，作为会话与列表缓存的持久层
type Client struct {
	client redis.UniversalClient
	config *Config
	logger *log.Logger
}

// New 根据配置自动选择单机/集群/哨兵模式
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.G
	}

	return newClient(redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		MasterName:   cfg.MasterName,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Protocol:     cfg.Protocol,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		TLSConfig:    cfg.TLSConfig,
	}), cfg, o, logger)
}

// NewFromClient 包装已有客户端
func NewFromClient(rdb redis.UniversalClient, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.G
	}
	return newClient(rdb, cfg, o, logger)
}

func newClient(rdb redis.UniversalClient, cfg *Config, o *clientOptions, logger *log.Logger) (*Client, error) {
	c := &Client{client: rdb, config: cfg, logger: logger}

	for _, h := range o.hooks {
		rdb.AddHook(h)
	}
	if o.enableTracing {
		if err := redisotel.InstrumentTracing(rdb, o.tracingOpts...); err != nil {
			rdb.Close()
			return nil, err
		}
	}
	if o.enableMetrics {
		if err := redisotel.InstrumentMetrics(rdb, o.metricsOpts...); err != nil {
			rdb.Close()
			return nil, err
		}
	}
	if o.debug {
		rdb.AddHook(NewDebugHook(logger, o.slowThreshold))
	}

	if !o.skipPing {
		if err := c.Ping(context.Background()); err != nil {
			rdb.Close()
			return nil, err
		}
	}

	logger.Debug().Str("mode", cfg.mode()).Strs("addrs", cfg.Addrs).Msg("redis client created")
	return c, nil
}

func (c *Client) UniversalClient() redis.UniversalClient {
	return c.client
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}

var _ store.KV = (*Client)(nil)
