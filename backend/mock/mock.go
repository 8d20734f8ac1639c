// Package mock 是演示模式使用的内存后端，行为尽量贴近托管后端。
package mock

import (
	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/core/auth/jwt"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/preset"
)

// Backend 内存后端，同时实现 Auth、Rows、Storage、Functions
type Backend struct {
	clock   clockwork.Clock
	logger  *log.Logger
	baseURL string

	auth      *Auth
	rows      *Rows
	storage   *Storage
	functions *Functions
	faults    *Faults
}

type Option func(*Backend)

func WithClock(c clockwork.Clock) Option {
	return func(b *Backend) {
		b.clock = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// WithBaseURL 生成公开访问地址时使用
func WithBaseURL(url string) Option {
	return func(b *Backend) {
		b.baseURL = url
	}
}

// New 创建空后端，演示数据通过 Seed 写入
func New(cfg *jwt.Config, opts ...Option) (*Backend, error) {
	b := &Backend{
		clock:   clockwork.NewRealClock(),
		logger:  log.G,
		baseURL: "http://localhost:54321",
		faults:  &Faults{},
	}
	for _, opt := range opts {
		opt(b)
	}

	tokens, err := jwt.New(cfg, jwt.WithClock(b.clock))
	if err != nil {
		return nil, err
	}
	b.rows = newRows(b.clock, b.faults)
	b.auth = newAuth(tokens, b.clock, b.rows, b.faults, b.logger)
	b.storage = newStorage(b.baseURL)
	b.functions = newFunctions(b.rows, b.clock)
	return b, nil
}

// NewSeeded 创建并写入指定预设的演示数据
func NewSeeded(cfg *jwt.Config, p preset.Preset, opts ...Option) (*Backend, error) {
	b, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := b.Seed(p); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) Client() *backend.Client {
	return &backend.Client{
		Auth:      b.auth,
		Rows:      b.rows,
		Storage:   b.storage,
		Functions: b.functions,
	}
}

func (b *Backend) Auth() *Auth { return b.auth }

func (b *Backend) Rows() *Rows { return b.rows }

func (b *Backend) Storage() *Storage { return b.storage }

func (b *Backend) Functions() *Functions { return b.functions }

// Faults 故障注入，测试用
func (b *Backend) Faults() *Faults { return b.faults }
