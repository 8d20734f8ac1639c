package minio

import (
	"net/http"
	"time"

	"github.com/kochabx/rentoso/core/tag"
	"github.com/kochabx/rentoso/errors"
)

// Config MinIO 客户端配置
type Config struct {
	Endpoint        string        `json:"endpoint" mapstructure:"endpoint" default:"localhost:9000"`
	AccessKeyID     string        `json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key" mapstructure:"secret_access_key"`
	UseSSL          bool          `json:"use_ssl" mapstructure:"use_ssl"`
	Region          string        `json:"region" mapstructure:"region" default:"us-east-1"`
	Bucket          string        `json:"bucket" mapstructure:"bucket" default:"propiedades"`
	RequestTimeout  time.Duration `json:"request_timeout" mapstructure:"request_timeout" default:"30s"`
	PresignExpiry   time.Duration `json:"presign_expiry" mapstructure:"presign_expiry" default:"1h"`
	// PublicBaseURL 公开访问地址，为空时按 Endpoint 拼接
	PublicBaseURL string `json:"public_base_url" mapstructure:"public_base_url"`

	HTTPClient *http.Client `json:"-" mapstructure:"-"`
}

func (c *Config) init() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	switch {
	case c.Endpoint == "":
		return errors.InvalidInput("minio: endpoint cannot be empty")
	case c.AccessKeyID == "":
		return errors.InvalidInput("minio: access key ID cannot be empty")
	case c.SecretAccessKey == "":
		return errors.InvalidInput("minio: secret access key cannot be empty")
	}
	return nil
}

type Option func(*Config)

func WithUseSSL(useSSL bool) Option {
	return func(c *Config) {
		c.UseSSL = useSSL
	}
}

func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

func WithBucket(bucket string) Option {
	return func(c *Config) {
		c.Bucket = bucket
	}
}

func WithPresignExpiry(expiry time.Duration) Option {
	return func(c *Config) {
		c.PresignExpiry = expiry
	}
}

func WithPublicBaseURL(u string) Option {
	return func(c *Config) {
		c.PublicBaseURL = u
	}
}

// WithHTTPClient 设置自定义 HTTP 客户端
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}
