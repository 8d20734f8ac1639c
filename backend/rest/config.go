package rest

import (
	"strings"
	"time"

	"github.com/kochabx/rentoso/core/tag"
	"github.com/kochabx/rentoso/errors"
)

// Config 托管后端地址与匿名密钥
type Config struct {
	URL     string        `json:"url" mapstructure:"url" validate:"omitempty,url"`
	AnonKey string        `json:"anon_key" mapstructure:"anon_key"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" default:"15s"`
	// Schema PostgREST 的 Accept-Profile
	Schema string `json:"schema" mapstructure:"schema" default:"public"`
}

func (c *Config) init() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.URL == "" || c.AnonKey == "" {
		return errors.InvalidInput("backend url and anon key are required")
	}
	return nil
}
