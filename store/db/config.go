package db

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kochabx/rentoso/core/tag"
)

// Driver 数据库驱动类型
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config 数据库配置。DSN 非空时直接使用，否则按驱动拼接
type Config struct {
	Driver   Driver `json:"driver" mapstructure:"driver" default:"sqlite" validate:"oneof=mysql postgres sqlite"`
	DSN      string `json:"dsn" mapstructure:"dsn"`
	Host     string `json:"host" mapstructure:"host" default:"localhost"`
	Port     int    `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database" default:"rentoso"`
	// FilePath SQLite 文件路径
	FilePath string `json:"file_path" mapstructure:"file_path" default:"rentoso.db"`
	// Table 键值表名
	Table string `json:"table" mapstructure:"table" default:"kv_entries"`

	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns" default:"2"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns" default:"10"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" default:"1h"`
	ConnectTimeout  time.Duration `json:"connect_timeout" mapstructure:"connect_timeout" default:"5s"`
	SlowThreshold   time.Duration `json:"slow_threshold" mapstructure:"slow_threshold" default:"200ms"`
	// LogLevel silent/error/warn/info
	LogLevel string `json:"log_level" mapstructure:"log_level" default:"warn"`
}

func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

func (c *Config) dsn() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case DriverSQLite:
		return "file:" + c.FilePath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=true", nil
	case DriverPostgres:
		port := c.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			c.Host, port, c.User, c.Password, c.Database), nil
	case DriverMySQL:
		port := c.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=%s",
			c.User, c.Password, c.Host, port, c.Database, url.QueryEscape("UTC")), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, c.Driver)
	}
}
