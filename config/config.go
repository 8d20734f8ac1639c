package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/kochabx/rentoso/core/validator"
	"github.com/kochabx/rentoso/log"
)

// Config 管理配置的加载与热更新
type Config struct {
	mu       sync.RWMutex
	viper    *viper.Viper
	validate *validator.Validator
	target   any
	loader   Loader
	onChange []func()
}

// New 创建配置，未指定 loader 时从当前目录读取 rentoso.yaml，文件缺失时仅使用默认值与环境变量
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:    viper.New(),
		validate: validator.New(),
		target:   target,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loader == nil {
		c.loader = NewFileLoader("rentoso.yaml", []string{"."}, c.viper, c.validate, true)
	}
	return c
}

func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loader.Load(c.target)
}

// Reload 重新加载，成功后依次通知订阅者
func (c *Config) Reload() error {
	c.mu.Lock()
	err := c.loader.Load(c.target)
	callbacks := append([]func(){}, c.onChange...)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnChange 注册热更新回调
func (c *Config) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// Watch 监听配置文件变化并自动重新加载
func (c *Config) Watch() error {
	return c.loader.Watch(func() {
		log.Info().Msg("config change detected")
		if err := c.Reload(); err != nil {
			log.Error().Err(err).Msg("failed to reload config after change")
			return
		}
		log.Info().Msg("config reloaded successfully")
	})
}

// Read 在读锁内访问配置
func (c *Config) Read(fn func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn()
}

func (c *Config) Viper() *viper.Viper {
	return c.viper
}
