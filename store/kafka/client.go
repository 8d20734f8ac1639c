// Package kafka 管理按主题复用的 kafka-go 生产者。
package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"golang.org/x/sync/errgroup"

	"github.com/kochabx/rentoso/log"
)

var (
	ErrClientClosed = errors.New("kafka: producer closed")
	ErrEmptyBrokers = errors.New("kafka: no brokers configured")
)

// Writer kafka.Writer 的最小接口，便于替换
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Client 每个主题一个生产者
type Client struct {
	config    *Config
	transport *kafka.Transport
	logger    *log.Logger

	mu        sync.Mutex
	producers map[string]*kafka.Writer
	closed    bool
}

type Option func(*Client)

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}
	c := &Client{
		config:    cfg,
		logger:    log.G,
		producers: make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.transport = &kafka.Transport{DialTimeout: cfg.Timeout}
	if cfg.Username != "" && cfg.Password != "" {
		c.transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	return c, nil
}

// Producer 获取主题的同步生产者，不存在时创建
func (c *Client) Producer(topic string) (Writer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if w, ok := c.producers[topic]; ok {
		return w, nil
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.config.Brokers...),
		Topic:                  topic,
		Balancer:               c.config.balancer(),
		Transport:              c.transport,
		BatchTimeout:           c.config.BatchTimeout,
		AllowAutoTopicCreation: c.config.AllowAutoTopicCreation,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			c.logger.Error().Str("topic", topic).Msgf(msg, args...)
		}),
	}
	c.producers[topic] = w
	return w, nil
}

// Close 并发关闭所有生产者
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	producers := c.producers
	c.producers = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.CloseTimeout)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	for _, w := range producers {
		eg.Go(func() error {
			done := make(chan error, 1)
			go func() { done <- w.Close() }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return eg.Wait()
}
