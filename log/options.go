package log

import (
	"github.com/rs/zerolog"

	"github.com/kochabx/rentoso/log/desensitize"
)

// Option 日志选项，pre 为 true 的选项在构建 zerolog 实例之前执行
type Option struct {
	pre bool
	fn  func(*Logger)
}

func (o Option) apply(l *Logger, pre bool) {
	if o.pre == pre {
		o.fn(l)
	}
}

func WithLevel(level zerolog.Level) Option {
	return Option{fn: func(l *Logger) { l.Logger = l.Logger.Level(level) }}
}

func WithCaller() Option {
	return Option{fn: func(l *Logger) { l.Logger = l.Logger.With().Caller().Logger() }}
}

// WithDesensitize 写入前按规则脱敏
func WithDesensitize(hook *desensitize.Hook) Option {
	return Option{pre: true, fn: func(l *Logger) { l.hook = hook }}
}
