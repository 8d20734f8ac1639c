package realtime

import (
	"time"

	"github.com/kochabx/rentoso/core/tag"
	"github.com/kochabx/rentoso/errors"
)

type Config struct {
	// URL 形如 ws://localhost:54321/realtime/v1/websocket
	URL    string `json:"url" mapstructure:"url"`
	APIKey string `json:"api_key" mapstructure:"api_key"`
	Schema string `json:"schema" mapstructure:"schema" default:"public"`
	// Tables 订阅变更的表
	Tables            []string      `json:"tables" mapstructure:"tables" default:"propiedad,oportunidades,prospecto,propietario,empresa"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" mapstructure:"heartbeat_interval" default:"30s"`
	ConnectTimeout    time.Duration `json:"connect_timeout" mapstructure:"connect_timeout" default:"10s"`
	WriteTimeout      time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"10s"`
	// 断线重连的退避
	ReconnectInterval    time.Duration `json:"reconnect_interval" mapstructure:"reconnect_interval" default:"1s"`
	MaxReconnectInterval time.Duration `json:"max_reconnect_interval" mapstructure:"max_reconnect_interval" default:"30s"`
	MaxMessageSize       int64         `json:"max_message_size" mapstructure:"max_message_size" default:"1048576"`
}

func (c *Config) init() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	if c.URL == "" {
		return errors.InvalidInput("realtime: url is required")
	}
	return nil
}
