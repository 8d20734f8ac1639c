package redis

import (
	"crypto/tls"
	"time"

	"github.com/kochabx/rentoso/core/tag"
)

// Config Redis 配置，Addrs 多于一个且未设置 MasterName 时为集群模式
type Config struct {
	Addrs      []string `json:"addrs" mapstructure:"addrs" default:"localhost:6379"`
	MasterName string   `json:"master_name" mapstructure:"master_name"`
	Username   string   `json:"username" mapstructure:"username"`
	Password   string   `json:"password" mapstructure:"password"`
	DB         int      `json:"db" mapstructure:"db"`
	Protocol   int      `json:"protocol" mapstructure:"protocol" default:"3"`

	// KeyPrefix 所有键的前缀，用于与其他应用共享实例
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix" default:"rentoso:"`
	// TTL 写入的过期时间，0 表示不过期
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout" default:"3s"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"3s"`
	PoolSize     int           `json:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" mapstructure:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries"`

	TLSConfig *tls.Config `json:"-" mapstructure:"-"`
}

func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return ErrEmptyAddrs
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func (c *Config) mode() string {
	switch {
	case c.MasterName != "":
		return "sentinel"
	case len(c.Addrs) > 1:
		return "cluster"
	default:
		return "single"
	}
}
