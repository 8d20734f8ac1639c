package log

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/kochabx/rentoso/core/tag"
	"github.com/kochabx/rentoso/log/desensitize"
	"github.com/kochabx/rentoso/log/writer"
)

// Logger 日志记录器
type Logger struct {
	zerolog.Logger
	hook   *desensitize.Hook
	closer io.Closer
}

func init() {
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

func newLogger(w io.Writer, opts ...Option) *Logger {
	l := &Logger{}
	// 先收集钩子，再构建 zerolog 实例
	for _, opt := range opts {
		opt.apply(l, true)
	}
	if l.hook != nil {
		w = desensitize.NewWriter(w, l.hook)
	}
	l.Logger = zerolog.New(w).With().Timestamp().Logger()
	for _, opt := range opts {
		opt.apply(l, false)
	}
	return l
}

// New 输出到控制台
func New(opts ...Option) *Logger {
	return newLogger(writer.Console(), opts...)
}

// NewWriter 输出到任意 writer，测试中常用
func NewWriter(w io.Writer, opts ...Option) *Logger {
	return newLogger(w, opts...)
}

// NewConfig 按配置构建日志记录器
func NewConfig(c Config) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	opts := []Option{WithLevel(level)}
	if c.Caller {
		opts = append(opts, WithCaller())
	}
	if !c.Raw {
		opts = append(opts, WithDesensitize(desensitize.NewHook(append(desensitize.Session(), desensitize.PII()...)...)))
	}

	var (
		w      io.Writer
		closer io.Closer
	)
	switch c.Output {
	case OutputConsole:
		w = writer.Console()
	case OutputFile, OutputMulti:
		fw, err := writer.File(c.File.rotateConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create file writer: %w", err)
		}
		closer, _ = fw.(io.Closer)
		w = fw
		if c.Output == OutputMulti {
			w = zerolog.MultiLevelWriter(fw, writer.Console())
		}
	default:
		return nil, fmt.Errorf("unsupported log output: %s", c.Output)
	}

	l := newLogger(w, opts...)
	l.closer = closer
	return l, nil
}

// Component 返回带组件名的子日志记录器
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With().Str("component", name).Logger(), hook: l.hook}
}

// Close 释放文件句柄
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
