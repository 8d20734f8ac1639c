package http

import (
	"time"

	"github.com/kochabx/rentoso/core/rate"
	"github.com/kochabx/rentoso/core/tag"
	"github.com/kochabx/rentoso/transport/http/middleware"
)

// Config 守护进程 HTTP 服务配置
type Config struct {
	Addr              string                `json:"addr" mapstructure:"addr" default:"127.0.0.1:8787"`
	Mode              string                `json:"mode" mapstructure:"mode" default:"release" validate:"oneof=debug release test"`
	ReadHeaderTimeout time.Duration         `json:"read_header_timeout" mapstructure:"read_header_timeout" default:"5s"`
	Metrics           MetricsOption         `json:"metrics" mapstructure:"metrics"`
	Health            HealthOption          `json:"health" mapstructure:"health"`
	Cors              middleware.CorsConfig `json:"cors" mapstructure:"cors"`
	SignInRate        RateOption            `json:"sign_in_rate" mapstructure:"sign_in_rate"`
}

func (c *Config) init() error {
	return tag.ApplyDefaults(c)
}

type MetricsOption struct {
	Disabled                  bool   `json:"disabled" mapstructure:"disabled"`
	Path                      string `json:"path" mapstructure:"path" default:"/metrics"`
	EnabledGoCollector        bool   `json:"enabled_go_collector" mapstructure:"enabled_go_collector"`
	EnabledBuildInfoCollector bool   `json:"enabled_build_info_collector" mapstructure:"enabled_build_info_collector"`
}

type HealthOption struct {
	Disabled bool   `json:"disabled" mapstructure:"disabled"`
	Path     string `json:"path" mapstructure:"path" default:"/healthz"`
}

// RateOption 登录限流，配置了 Redis 时多进程共享计数
type RateOption struct {
	Disabled    bool `json:"disabled" mapstructure:"disabled"`
	rate.Config `mapstructure:",squash"`
}
