// Package minio 把物业图片存入自建的 S3 兼容对象存储，实现 backend.Storage。
package minio

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/log"
)

// Client MinIO 客户端
type Client struct {
	config *Config
	core   *minio.Core
	logger *log.Logger
}

// NewClient 创建客户端，opts 在 cfg 之后生效
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}

	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.HTTPClient != nil {
		minioOpts.Transport = cfg.HTTPClient.Transport
	} else {
		minioOpts.Transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.RequestTimeout,
		}
	}

	core, err := minio.NewCore(cfg.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio core: %w", err)
	}
	return &Client{config: &cfg, core: core, logger: log.G.Component("minio")}, nil
}

// Bucket 默认存储桶
func (c *Client) Bucket() string {
	return c.config.Bucket
}

// PublicURL 公开读取地址，不校验对象是否存在
func (c *Client) PublicURL(bucket, path string) string {
	base := c.config.PublicBaseURL
	if base == "" {
		scheme := "http"
		if c.config.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + c.config.Endpoint
	}
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) Close() error {
	return nil
}

// contentType 根据文件扩展名推断 Content-Type
func contentType(objectName, given string) string {
	if given != "" {
		return given
	}
	if ct := mime.TypeByExtension(filepath.Ext(objectName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var _ backend.Storage = (*Client)(nil)
