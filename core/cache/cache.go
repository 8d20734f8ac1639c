// Package cache 提供带 TTL 与版本号的列表缓存，每种实体一个实例。
package cache

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/metrics"
	"github.com/kochabx/rentoso/model"
	"github.com/kochabx/rentoso/store"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultVersion = 1
)

// Fetcher 按作用域（通常是公司 id）拉取完整列表
type Fetcher[T any] func(ctx context.Context, scope string) ([]T, error)

// OneFetcher 按 id 拉取单条记录，不存在时返回 nil
type OneFetcher[T any] func(ctx context.Context, id string) (*T, error)

// Snapshot 某一时刻的缓存内容
type Snapshot[T any] struct {
	Items         []T
	Scope         string
	LastFetchedAt *time.Time
	Version       int
	Loading       bool
	Err           error
	Current       *T
}

// blob 持久化格式，版本不一致时整体丢弃
type blob[T any] struct {
	Version       int        `json:"version"`
	Scope         string     `json:"scope"`
	Items         []T        `json:"items"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
}

// Store 列表缓存。TTL 内且版本、作用域一致的非空缓存直接返回，不访问后端。
type Store[T model.Keyed] struct {
	name     string
	ttl      time.Duration
	version  int
	fetch    Fetcher[T]
	fetchOne OneFetcher[T]
	kv       store.KV
	key      string
	clock    clockwork.Clock
	logger   *log.Logger

	mu            sync.RWMutex
	items         []T
	scope         string
	lastFetchedAt *time.Time
	dataVersion   int
	loading       bool
	err           error
	current       *T
	restored      bool

	group singleflight.Group
}

type Option[T model.Keyed] func(*Store[T])

func WithTTL[T model.Keyed](ttl time.Duration) Option[T] {
	return func(s *Store[T]) {
		s.ttl = ttl
	}
}

// WithVersion 数据结构不兼容变化时递增
func WithVersion[T model.Keyed](v int) Option[T] {
	return func(s *Store[T]) {
		s.version = v
	}
}

// WithPersist 把缓存写入 kv 的 key 下，启动后首次访问时恢复
func WithPersist[T model.Keyed](kv store.KV, key string) Option[T] {
	return func(s *Store[T]) {
		s.kv = kv
		s.key = key
	}
}

func WithFetchOne[T model.Keyed](f OneFetcher[T]) Option[T] {
	return func(s *Store[T]) {
		s.fetchOne = f
	}
}

func WithClock[T model.Keyed](c clockwork.Clock) Option[T] {
	return func(s *Store[T]) {
		s.clock = c
	}
}

func WithLogger[T model.Keyed](l *log.Logger) Option[T] {
	return func(s *Store[T]) {
		s.logger = l
	}
}

// New 创建名为 name 的缓存，name 同时用作指标标签
func New[T model.Keyed](name string, fetch Fetcher[T], opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		name:    name,
		ttl:     DefaultTTL,
		version: DefaultVersion,
		fetch:   fetch,
		clock:   clockwork.NewRealClock(),
		logger:  log.G,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Component("cache." + name)
	s.dataVersion = s.version
	return s
}

func (s *Store[T]) Name() string { return s.name }

// Fetch 返回 scope 下的列表。并发的同作用域请求合并为一次后端调用。
// 失败时记录在 Err 中并返回，已有的条目保持不变。
func (s *Store[T]) Fetch(ctx context.Context, scope string) ([]T, error) {
	s.restore(ctx)

	s.mu.RLock()
	if s.validLocked(scope) {
		items := slices.Clone(s.items)
		s.mu.RUnlock()
		metrics.CacheLookups.WithLabelValues(s.name, "hit").Inc()
		return items, nil
	}
	s.mu.RUnlock()
	metrics.CacheLookups.WithLabelValues(s.name, "miss").Inc()

	// 共享的加载不随发起者取消，每个调用方只放弃自己的等待
	ch := s.group.DoChan(scope, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), scope)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return slices.Clone(r.Val.([]T)), nil
	}
}

// Refresh 跳过缓存直接拉取
func (s *Store[T]) Refresh(ctx context.Context, scope string) ([]T, error) {
	s.Invalidate(ctx)
	return s.Fetch(ctx, scope)
}

// FetchOne 拉取单条记录并设为当前记录，不影响列表
func (s *Store[T]) FetchOne(ctx context.Context, id string) (*T, error) {
	if s.fetchOne == nil {
		return nil, errors.NotFound("%s: single fetch not supported", s.name)
	}
	s.setLoading()
	item, err := s.fetchOne(ctx, id)
	if err == nil && item == nil {
		err = errors.NotFound("%s %s not found", s.name, id)
	}
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		return nil, err
	}
	s.current = item
	s.mu.Unlock()
	c := *item
	return &c, nil
}

// Find 在已缓存的条目中查找
func (s *Store[T]) Find(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(key); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// SetCurrent item 为 nil 时清空当前记录
func (s *Store[T]) SetCurrent(item *T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item == nil {
		s.current = nil
		return
	}
	c := *item
	s.current = &c
}

// UpdateLocal 按 key 替换一条已知修改成功的记录，不改变抓取时间
func (s *Store[T]) UpdateLocal(ctx context.Context, item T) bool {
	s.restore(ctx)
	s.mu.Lock()
	i := s.indexLocked(item.Key())
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items[i] = item
	if s.current != nil && (*s.current).Key() == item.Key() {
		s.current = &item
	}
	b := s.blobLocked()
	s.mu.Unlock()
	s.persist(ctx, b)
	return true
}

// Add 追加一条新记录，key 已存在时替换
func (s *Store[T]) Add(ctx context.Context, item T) {
	s.restore(ctx)
	s.mu.Lock()
	if i := s.indexLocked(item.Key()); i >= 0 {
		s.items[i] = item
	} else {
		s.items = append(s.items, item)
	}
	b := s.blobLocked()
	s.mu.Unlock()
	s.persist(ctx, b)
}

func (s *Store[T]) Remove(ctx context.Context, key string) bool {
	s.restore(ctx)
	s.mu.Lock()
	i := s.indexLocked(key)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	if s.current != nil && (*s.current).Key() == key {
		s.current = nil
	}
	b := s.blobLocked()
	s.mu.Unlock()
	s.persist(ctx, b)
	return true
}

// Invalidate 下次 Fetch 必定访问后端
func (s *Store[T]) Invalidate(ctx context.Context) {
	s.restore(ctx)
	s.mu.Lock()
	s.lastFetchedAt = nil
	b := s.blobLocked()
	s.mu.Unlock()
	s.persist(ctx, b)
	s.logger.Debug().Msg("cache invalidated")
}

// Reset 清空内存与持久化内容，登出时使用
func (s *Store[T]) Reset(ctx context.Context) {
	s.mu.Lock()
	s.items, s.scope, s.lastFetchedAt = nil, "", nil
	s.err, s.current = nil, nil
	s.dataVersion = s.version
	s.restored = true
	s.mu.Unlock()
	if s.kv != nil {
		if err := s.kv.Delete(ctx, s.key); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete persisted cache")
		}
	}
}

func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot[T]{
		Items:   slices.Clone(s.items),
		Scope:   s.scope,
		Version: s.dataVersion,
		Loading: s.loading,
		Err:     s.err,
	}
	if s.lastFetchedAt != nil {
		t := *s.lastFetchedAt
		snap.LastFetchedAt = &t
	}
	if s.current != nil {
		c := *s.current
		snap.Current = &c
	}
	return snap
}

func (s *Store[T]) load(ctx context.Context, scope string) ([]T, error) {
	s.setLoading()
	start := s.clock.Now()
	items, err := s.fetch(ctx, scope)
	metrics.CacheFetchDuration.WithLabelValues(s.name).Observe(s.clock.Since(start).Seconds())

	if err != nil {
		metrics.CacheFetchErrors.WithLabelValues(s.name).Inc()
		err = errors.Wrap(err, errors.CodeFetchFailed, "%s: fetch failed", s.name)
		s.mu.Lock()
		s.loading = false
		s.err = err
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("scope", scope).Msg("list fetch failed")
		return nil, err
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.items = items
	s.scope = scope
	s.lastFetchedAt = &now
	s.dataVersion = s.version
	s.loading = false
	b := s.blobLocked()
	s.mu.Unlock()
	s.persist(ctx, b)
	s.logger.Debug().Str("scope", scope).Int("count", len(items)).Msg("list fetched")
	return items, nil
}

func (s *Store[T]) setLoading() {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()
}

func (s *Store[T]) validLocked(scope string) bool {
	return len(s.items) > 0 &&
		s.lastFetchedAt != nil &&
		s.clock.Since(*s.lastFetchedAt) < s.ttl &&
		s.dataVersion == s.version &&
		s.scope == scope
}

func (s *Store[T]) indexLocked(key string) int {
	return slices.IndexFunc(s.items, func(item T) bool { return item.Key() == key })
}

func (s *Store[T]) blobLocked() blob[T] {
	return blob[T]{
		Version:       s.dataVersion,
		Scope:         s.scope,
		Items:         slices.Clone(s.items),
		LastFetchedAt: s.lastFetchedAt,
	}
}

func (s *Store[T]) persist(ctx context.Context, b blob[T]) {
	if s.kv == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode cache")
		return
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist cache")
	}
}

// restore 只执行一次，版本不一致的持久化内容被删除
func (s *Store[T]) restore(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restored || s.kv == nil {
		s.restored = true
		return
	}
	s.restored = true

	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("failed to read persisted cache")
		}
		return
	}
	var b blob[T]
	if err := json.Unmarshal(data, &b); err != nil || b.Version != s.version {
		s.logger.Info().Int("persisted", b.Version).Int("expected", s.version).Msg("discarding persisted cache")
		if err := s.kv.Delete(ctx, s.key); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete persisted cache")
		}
		return
	}
	s.items, s.scope, s.lastFetchedAt, s.dataVersion = b.Items, b.Scope, b.LastFetchedAt, b.Version
}
