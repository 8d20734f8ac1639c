package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kochabx/rentoso/core/tag"
)

// Config JWT 配置
type Config struct {
	Secret          string        `json:"secret" mapstructure:"secret" default:"rentoso-demo-secret"`
	SigningMethod   string        `json:"signing_method" mapstructure:"signing_method" default:"HS256"`
	AccessTokenTTL  time.Duration `json:"access_token_ttl" mapstructure:"access_token_ttl" default:"1h"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl" mapstructure:"refresh_token_ttl" default:"168h"`
	Issuer          string        `json:"issuer" mapstructure:"issuer" default:"rentoso"`
	Audience        []string      `json:"audience" mapstructure:"audience" default:"authenticated"`
}

func (c *Config) init() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	if c.Secret == "" {
		return ErrEmptySecret
	}
	return nil
}

// 只支持对称签名，演示后端没有密钥对
func (c *Config) method() jwt.SigningMethod {
	switch c.SigningMethod {
	case "HS384":
		return jwt.SigningMethodHS384
	case "HS512":
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}
