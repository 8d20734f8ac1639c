package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/store"
)

// Keys 会话持久化使用的键
type Keys struct {
	// Backup 持久层副本
	Backup string `json:"backup" mapstructure:"backup" default:"rentoso_session_backup"`
	// Active 短期层副本
	Active string `json:"active" mapstructure:"active" default:"rentoso_session_active"`
	// Timestamp 短期层中的写入时间，Unix 毫秒
	Timestamp string `json:"timestamp" mapstructure:"timestamp" default:"rentoso_session_timestamp"`
}

// DefaultKeys 默认键名
var DefaultKeys = Keys{
	Backup:    "rentoso_session_backup",
	Active:    "rentoso_session_active",
	Timestamp: "rentoso_session_timestamp",
}

// DefaultFreshness 会话副本的新鲜期
const DefaultFreshness = 24 * time.Hour

// Persistence 把会话写入短期层和持久层两份。
// 所有方法都不向调用方返回错误，失败只记录日志。
type Persistence struct {
	tiers     *store.Tiered
	slot      *store.Slot
	keys      Keys
	freshness time.Duration
	clock     clockwork.Clock
	logger    *log.Logger
}

type PersistenceOption func(*Persistence)

func WithKeys(k Keys) PersistenceOption {
	return func(p *Persistence) {
		p.keys = k
	}
}

func WithFreshness(d time.Duration) PersistenceOption {
	return func(p *Persistence) {
		p.freshness = d
	}
}

func WithPersistenceClock(c clockwork.Clock) PersistenceOption {
	return func(p *Persistence) {
		p.clock = c
	}
}

func WithPersistenceLogger(l *log.Logger) PersistenceOption {
	return func(p *Persistence) {
		p.logger = l
	}
}

// NewPersistence short 为短期层，durable 为持久层
func NewPersistence(short, durable store.KV, opts ...PersistenceOption) *Persistence {
	p := &Persistence{
		keys:      DefaultKeys,
		freshness: DefaultFreshness,
		clock:     clockwork.NewRealClock(),
		logger:    log.G,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Component("session.persistence")
	p.tiers = &store.Tiered{Primary: short, Fallback: durable, Logger: p.logger}
	p.slot = p.tiers.Slot(p.keys.Active, p.keys.Backup)
	return p
}

// Save 写入两层并记录写入时间
func (p *Persistence) Save(ctx context.Context, s *backend.Session) {
	if s == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode session")
		return
	}
	if err := p.slot.Set(ctx, data); err != nil {
		p.logger.Warn().Err(err).Msg("failed to persist session")
	}
	ts := strconv.FormatInt(p.clock.Now().UnixMilli(), 10)
	if err := p.tiers.Primary.Set(ctx, p.keys.Timestamp, []byte(ts)); err != nil {
		p.logger.Warn().Err(err).Msg("failed to persist session timestamp")
	}
}

// Get 优先短期层，其次持久层（并回填短期层），都没有时返回 nil
func (p *Persistence) Get(ctx context.Context) *backend.Session {
	data, src, err := p.slot.Get(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn().Err(err).Msg("failed to read persisted session")
		}
		return nil
	}
	var s backend.Session
	if err := json.Unmarshal(data, &s); err != nil {
		p.logger.Warn().Err(err).Str("source", src.String()).Msg("discarding corrupt persisted session")
		return nil
	}
	p.logger.Debug().Str("source", src.String()).Msg("persisted session loaded")
	return &s
}

// Clear 删除两份副本和写入时间，只在用户主动登出时调用
func (p *Persistence) Clear(ctx context.Context) {
	err := errors.Join(
		p.slot.Clear(ctx),
		p.tiers.Primary.Delete(ctx, p.keys.Timestamp),
	)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to clear persisted session")
	}
}

// IsFresh 写入时间在新鲜期之内
func (p *Persistence) IsFresh(ctx context.Context) bool {
	data, err := p.tiers.Primary.Get(ctx, p.keys.Timestamp)
	if err != nil {
		return false
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return false
	}
	return p.clock.Since(time.UnixMilli(ms)) < p.freshness
}

// Durable 持久层，登出时清扫残留键使用
func (p *Persistence) Durable() store.KV {
	return p.tiers.Fallback
}
