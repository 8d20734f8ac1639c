// Package store 定义会话与缓存使用的键值存储，以及主备两级组合。
package store

import (
	"context"

	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.ErrNotFound

// KV 键值存储
type KV interface {
	// Get 键不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	// Keys 列出以 prefix 开头的键，prefix 为空时列出全部
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Source 读取命中的层级
type Source int

const (
	SourceNone Source = iota
	SourcePrimary
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Tiered 主备两级存储：Primary 为短期层，Fallback 为持久层。
// 两层之间没有事务，读取总是优先主层，从不合并。
type Tiered struct {
	Primary  KV
	Fallback KV
	Logger   *log.Logger
}

func (t *Tiered) logger() *log.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return log.G
}

// Slot 返回一对键：primaryKey 位于主层，fallbackKey 位于备层
func (t *Tiered) Slot(primaryKey, fallbackKey string) *Slot {
	return &Slot{t: t, primaryKey: primaryKey, fallbackKey: fallbackKey}
}

// Slot 两级存储中的单个值
type Slot struct {
	t           *Tiered
	primaryKey  string
	fallbackKey string
}

// Get 主层命中直接返回；否则读取备层并回填主层。两层都未命中时返回 ErrNotFound。
func (s *Slot) Get(ctx context.Context) ([]byte, Source, error) {
	v, err := s.t.Primary.Get(ctx, s.primaryKey)
	if err == nil {
		return v, SourcePrimary, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.t.logger().Warn().Err(err).Str("key", s.primaryKey).Msg("primary tier read failed, trying fallback")
	}

	v, err = s.t.Fallback.Get(ctx, s.fallbackKey)
	if err != nil {
		return nil, SourceNone, err
	}
	if err := s.t.Primary.Set(ctx, s.primaryKey, v); err != nil {
		s.t.logger().Warn().Err(err).Str("key", s.primaryKey).Msg("primary tier backfill failed")
	}
	return v, SourceFallback, nil
}

// Set 写入两层，任一层失败都会返回错误，但不会中断另一层的写入
func (s *Slot) Set(ctx context.Context, value []byte) error {
	return errors.Join(
		s.t.Primary.Set(ctx, s.primaryKey, value),
		s.t.Fallback.Set(ctx, s.fallbackKey, value),
	)
}

// Clear 删除两层中的值
func (s *Slot) Clear(ctx context.Context) error {
	return errors.Join(
		s.t.Primary.Delete(ctx, s.primaryKey),
		s.t.Fallback.Delete(ctx, s.fallbackKey),
	)
}
