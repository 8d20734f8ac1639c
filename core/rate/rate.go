// Package rate 按键的滑动窗口限流。
package rate

import (
	"context"
	"time"

	"github.com/kochabx/rentoso/core/tag"
)

// Limiter 按键计数，超过窗口内上限时拒绝
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config 窗口长度与窗口内允许的次数
type Config struct {
	Window time.Duration `json:"window" mapstructure:"window" default:"1m"`
	Limit  int           `json:"limit" mapstructure:"limit" default:"10"`
}

func (c *Config) init() error {
	return tag.ApplyDefaults(c)
}
