package log

import "github.com/rs/zerolog"

// G 全局日志实例
var G = New()

func SetGlobalLogger(l *Logger) {
	if l != nil {
		G = l
	}
}

func Debug() *zerolog.Event {
	return G.Debug()
}

func Info() *zerolog.Event {
	return G.Info()
}

func Warn() *zerolog.Event {
	return G.Warn()
}

// Error 带堆栈
func Error() *zerolog.Event {
	return G.Error().Stack()
}
