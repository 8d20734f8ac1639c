// Package realtime 订阅后端的行变更推送（Phoenix channel over WebSocket）。
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/core/scheduler"
	"github.com/kochabx/rentoso/log"
)

// Handler 处理行变更，在读循环中同步调用
type Handler func(Change)

// Client 维持一条连接并在断线后按退避重连，重连后重新加入全部频道
type Client struct {
	config  Config
	handler Handler
	token   func() string
	dialer  *websocket.Dialer
	clock   clockwork.Clock
	logger  *log.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	tables []string
	joined map[string]bool

	writeMu sync.Mutex
	ref     atomic.Uint64
}

type Option func(*Client)

// WithToken 加入频道时携带的访问令牌
func WithToken(fn func() string) Option {
	return func(c *Client) {
		c.token = fn
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func New(cfg Config, handler Handler, opts ...Option) (*Client, error) {
	if err := cfg.init(); err != nil {
		return nil, err
	}
	c := &Client{
		config:  cfg,
		handler: handler,
		clock:   clockwork.NewRealClock(),
		logger:  log.G,
		tables:  append([]string(nil), cfg.Tables...),
		joined:  make(map[string]bool),
		dialer: &websocket.Dialer{
			HandshakeTimeout:  cfg.ConnectTimeout,
			EnableCompression: true,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Component("realtime")
	return c, nil
}

// Run 连接并处理消息直到 ctx 取消
func (c *Client) Run(ctx context.Context) error {
	backoff := scheduler.NewExponentialBackoff(c.config.ReconnectInterval, c.config.MaxReconnectInterval, 2)
	attempt := 0
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		delay := backoff.NextRetry(attempt)
		attempt++
		if err == errStable {
			attempt, delay = 0, c.config.ReconnectInterval
		}
		c.logger.Warn().Err(err).Dur("retry_in", delay).Msg("realtime connection lost")
		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(delay):
		}
	}
}

// Subscribe 追加订阅的表，已连接时立即加入
func (c *Client) Subscribe(table string) error {
	c.mu.Lock()
	for _, t := range c.tables {
		if t == table {
			c.mu.Unlock()
			return nil
		}
	}
	c.tables = append(c.tables, table)
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return c.join(conn, table)
}

// Connected 当前是否持有连接
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

var errStable = fmt.Errorf("connection closed after receiving data")

func (c *Client) session(ctx context.Context) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(c.config.MaxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.joined = make(map[string]bool)
	tables := append([]string(nil), c.tables...)
	c.mu.Unlock()
	c.logger.Info().Strs("tables", tables).Msg("realtime connected")

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for _, t := range tables {
		if err := c.join(conn, t); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.heartbeat(ctx, conn)
	go func() {
		<-ctx.Done()
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}()

	received := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if received {
				return errStable
			}
			return fmt.Errorf("read: %w", err)
		}
		received = true
		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Debug().Err(err).Msg("ignoring malformed frame")
			continue
		}
		c.dispatch(m)
	}
}

func (c *Client) dispatch(m message) {
	switch m.Event {
	case eventReply:
		if m.Topic == topicPhoenix {
			return
		}
		var p replyPayload
		_ = json.Unmarshal(m.Payload, &p)
		if p.Status != "ok" {
			c.logger.Warn().Str("topic", m.Topic).Str("status", p.Status).RawJSON("response", nonEmpty(p.Response)).Msg("join rejected")
			return
		}
		c.mu.Lock()
		c.joined[m.Topic] = true
		c.mu.Unlock()
	case eventError, eventClose:
		c.mu.Lock()
		delete(c.joined, m.Topic)
		c.mu.Unlock()
		c.logger.Warn().Str("topic", m.Topic).Str("event", m.Event).Msg("channel closed by server")
	default:
		if change, ok := decodeChange(m); ok && c.handler != nil {
			c.handler(change)
		}
	}
}

// Joined 已确认加入的表
func (c *Client) Joined(table string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined[topicFor(c.config.Schema, table)]
}

func (c *Client) join(conn *websocket.Conn, table string) error {
	p := joinPayload{Config: joinConfig{PostgresChanges: []changeFilter{
		{Event: "*", Schema: c.config.Schema, Table: table},
	}}}
	if c.token != nil {
		p.AccessToken = c.token()
	}
	return c.send(conn, topicFor(c.config.Schema, table), eventJoin, p)
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := c.clock.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := c.send(conn, topicPhoenix, eventHeartbeat, struct{}{}); err != nil {
				c.logger.Debug().Err(err).Msg("heartbeat failed")
				return
			}
		}
	}
}

func (c *Client) send(conn *websocket.Conn, topic, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(message{
		Topic:   topic,
		Event:   event,
		Payload: raw,
		Ref:     strconv.FormatUint(c.ref.Add(1), 10),
	})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return "", fmt.Errorf("invalid realtime url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid websocket scheme: %s", u.Scheme)
	}
	q := u.Query()
	if c.config.APIKey != "" {
		q.Set("apikey", c.config.APIKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func nonEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
