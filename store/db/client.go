package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kochabx/rentoso/log"
)

var (
	ErrInvalidConfig     = errors.New("db: invalid config")
	ErrUnsupportedDriver = errors.New("db: unsupported driver")
)

// Client 数据库客户端，同时实现 store.KV
type Client struct {
	config *Config
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *log.Logger
}

type Option func(*Client)

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New 连接数据库并迁移键值表
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	c := &Client{config: cfg, logger: log.G}
	for _, opt := range opts {
		opt(c)
	}

	dialector, err := c.dialector()
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormLogWriter{c.logger}, logger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  parseLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	c.db, c.sqlDB = gdb, sqlDB

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := c.table(ctx).AutoMigrate(&Entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	c.logger.Debug().Str("driver", string(cfg.Driver)).Str("table", cfg.Table).Msg("database client created")
	return c, nil
}

func (c *Client) dialector() (gorm.Dialector, error) {
	dsn, err := c.config.dsn()
	if err != nil {
		return nil, err
	}
	switch c.config.Driver {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, ErrUnsupportedDriver
	}
}

func (c *Client) DB() *gorm.DB {
	return c.db
}

func (c *Client) Ping(ctx context.Context) error {
	return c.sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.sqlDB.Close()
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// gormLogWriter 将 GORM 日志写入 zerolog
type gormLogWriter struct {
	l *log.Logger
}

func (w gormLogWriter) Printf(format string, args ...any) {
	w.l.Info().Str("component", "gorm").Msgf(format, args...)
}
