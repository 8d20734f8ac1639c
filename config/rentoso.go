package config

import (
	"time"

	"github.com/kochabx/rentoso/backend/rest"
	"github.com/kochabx/rentoso/catalog"
	"github.com/kochabx/rentoso/core/auth/jwt"
	"github.com/kochabx/rentoso/core/auth/session"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/realtime"
	"github.com/kochabx/rentoso/store/db"
	"github.com/kochabx/rentoso/store/kafka"
	"github.com/kochabx/rentoso/store/oss/minio"
	"github.com/kochabx/rentoso/store/redis"
	xhttp "github.com/kochabx/rentoso/transport/http"
)

// 后端模式
const (
	ModeREST = "rest"
	ModeMock = "mock"
)

// 存储层实现
const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindDB     = "db"
)

// Rentoso 守护进程的完整配置，对应 rentoso.yaml
type Rentoso struct {
	Backend  Backend         `json:"backend" mapstructure:"backend"`
	Session  session.Config  `json:"session" mapstructure:"session"`
	Cache    catalog.Config  `json:"cache" mapstructure:"cache"`
	Storage  Storage         `json:"storage" mapstructure:"storage"`
	Redis    redis.Config    `json:"redis" mapstructure:"redis"`
	DB       db.Config       `json:"db" mapstructure:"db"`
	Media    Media           `json:"media" mapstructure:"media"`
	Kafka    kafka.Config    `json:"kafka" mapstructure:"kafka"`
	Audit    Audit           `json:"audit" mapstructure:"audit"`
	Realtime Realtime        `json:"realtime" mapstructure:"realtime"`
	Invite   Invite          `json:"invite" mapstructure:"invite"`
	Server   xhttp.Config    `json:"server" mapstructure:"server"`
	Log      log.Config      `json:"log" mapstructure:"log"`
	// Shutdown 停止服务与执行清理的总时限
	Shutdown time.Duration   `json:"shutdown_timeout" mapstructure:"shutdown_timeout" default:"15s"`
}

// Backend rest 模式连接托管后端，mock 模式使用内置演示数据
type Backend struct {
	Mode        string `json:"mode" mapstructure:"mode" default:"mock" validate:"oneof=rest mock"`
	Preset      string `json:"preset" mapstructure:"preset" default:"inmobiliaria" validate:"oneof=inmobiliaria coworking"`
	rest.Config `mapstructure:",squash"`
	// JWT 仅 mock 模式签发令牌时使用
	JWT jwt.Config `json:"jwt" mapstructure:"jwt"`
}

// Storage 会话与列表缓存的两级存储
type Storage struct {
	// Short 短期层，对应单个标签页的会话存储
	Short    string        `json:"short" mapstructure:"short" default:"memory" validate:"oneof=memory redis"`
	ShortTTL time.Duration `json:"short_ttl" mapstructure:"short_ttl" default:"12h"`
	Durable  string        `json:"durable" mapstructure:"durable" default:"db" validate:"oneof=memory redis db"`
}

// Media 房源图片存储，provider 为 backend 时走后端自带存储
type Media struct {
	Provider string       `json:"provider" mapstructure:"provider" default:"backend" validate:"oneof=backend minio"`
	Minio    minio.Config `json:"minio" mapstructure:"minio"`
}

type Audit struct {
	Sink  string `json:"sink" mapstructure:"sink" default:"log" validate:"oneof=none log kafka"`
	Topic string `json:"topic" mapstructure:"topic" default:"rentoso.session.audit"`
}

type Realtime struct {
	Enabled         bool `json:"enabled" mapstructure:"enabled"`
	realtime.Config `mapstructure:",squash"`
}

type Invite struct {
	AcceptURL string `json:"accept_url" mapstructure:"accept_url" default:"http://localhost:5173/accept-invitation"`
}

// Load 读取配置文件，path 为空时在当前目录查找 rentoso.yaml 且允许缺失
func Load(path string) (*Rentoso, *Config, error) {
	cfg := &Rentoso{}
	var opts []Option
	if path != "" {
		opts = append(opts, WithFile(path))
	}
	c := New(cfg, opts...)
	if err := c.Load(); err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}
