// Package session 管理认证会话：持久化、心跳与会话状态机。
package session

import (
	"time"

	"github.com/kochabx/rentoso/core/tag"
)

// Config 会话管理配置
type Config struct {
	// RetryAttempts 启动时获取会话的最大尝试次数
	RetryAttempts  int           `json:"retry_attempts" mapstructure:"retry_attempts" default:"3" validate:"gte=1"`
	RetryBaseDelay time.Duration `json:"retry_base_delay" mapstructure:"retry_base_delay" default:"1s"`
	RetryMaxDelay  time.Duration `json:"retry_max_delay" mapstructure:"retry_max_delay" default:"4s"`
	// RefreshLead 在过期前多久主动刷新
	RefreshLead       time.Duration `json:"refresh_lead" mapstructure:"refresh_lead" default:"5m"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" mapstructure:"heartbeat_interval" default:"10m"`
	Freshness         time.Duration `json:"freshness" mapstructure:"freshness" default:"24h"`
	// ResetRedirect 重置密码邮件中的跳转地址
	ResetRedirect string `json:"reset_redirect" mapstructure:"reset_redirect"`
	Keys          Keys   `json:"keys" mapstructure:"keys"`
	// 登出时从持久层清扫的残留键
	SweepPrefixes []string `json:"sweep_prefixes" mapstructure:"sweep_prefixes" default:"sb-"`
	SweepContains []string `json:"sweep_contains" mapstructure:"sweep_contains" default:"supabase"`
}

func (c *Config) init() error {
	return tag.ApplyDefaults(c)
}
