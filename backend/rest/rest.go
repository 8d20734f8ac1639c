// Package rest 通过 HTTP 访问兼容 Supabase 的托管后端。
package rest

import (
	"errors"
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/backend"
	xhttp "github.com/kochabx/rentoso/core/net/http"
	rerrors "github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
)

// Client 持有当前会话，行存储和函数调用使用会话的访问令牌
type Client struct {
	config *Config
	http   *xhttp.Client
	clock  clockwork.Clock
	logger *log.Logger

	mu        sync.RWMutex
	session   *backend.Session
	listeners backend.Listeners
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Client) {
		r.http = xhttp.New(xhttp.WithClient(c), xhttp.WithHeader(map[string]string{"apikey": r.config.AnonKey}))
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(r *Client) {
		r.clock = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Client) {
		r.logger = l
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
		config: cfg,
		http:   xhttp.New(xhttp.WithTimeout(cfg.Timeout), xhttp.WithHeader(map[string]string{"apikey": cfg.AnonKey})),
		clock:  clockwork.NewRealClock(),
		logger: log.G,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Backend 以接口形式暴露各能力
func (c *Client) Backend() *backend.Client {
	return &backend.Client{
		Auth:      &Auth{c},
		Rows:      &Rows{c},
		Storage:   &Storage{c},
		Functions: &Functions{c},
	}
}

func (c *Client) endpoint(path string) string {
	return c.config.URL + path
}

// bearer 未登录时使用匿名密钥
func (c *Client) bearer() xhttp.RequestOption {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil && c.session.AccessToken != "" {
		return xhttp.Bearer(c.session.AccessToken)
	}
	return xhttp.Bearer(c.config.AnonKey)
}

// mapError 将 HTTP 状态映射为统一错误码
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var se *xhttp.StatusError
	if !errors.As(err, &se) {
		return rerrors.Wrap(err, rerrors.CodeFetchFailed, "%s", op)
	}
	return rerrors.New(statusCode(se.StatusCode), "%s: %s", op, se.Message).WithCause(se)
}

func statusCode(status int) int {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return rerrors.CodeUnauthenticated
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return rerrors.CodeInvalidInput
	case http.StatusNotFound:
		return rerrors.CodeNotFound
	default:
		return rerrors.CodeFetchFailed
	}
}
