package config

import (
	"github.com/spf13/viper"

	"github.com/kochabx/rentoso/core/validator"
)

type Option func(*Config)

func WithViper(v *viper.Viper) Option {
	return func(c *Config) {
		c.viper = v
	}
}

func WithValidator(v *validator.Validator) Option {
	return func(c *Config) {
		c.validate = v
	}
}

func WithLoader(loader Loader) Option {
	return func(c *Config) {
		c.loader = loader
	}
}

// WithFile 从指定路径读取，文件必须存在
func WithFile(path string) Option {
	return func(c *Config) {
		c.loader = NewFileLoader(path, nil, c.viper, c.validate, false)
	}
}
