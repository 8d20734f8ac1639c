package audit

import (
	"context"

	"github.com/kochabx/rentoso/log"
)

// LogSink 以结构化日志输出
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(l *log.Logger) *LogSink {
	if l == nil {
		l = log.G
	}
	return &LogSink{logger: l.Component("audit")}
}

func (s *LogSink) Record(_ context.Context, e Event) error {
	ev := s.logger.Info().Str("event", string(e.Type)).Str("user_id", e.UserID).Time("at", e.At)
	for k, v := range e.Fields {
		ev = ev.Str(k, v)
	}
	ev.Msg("audit")
	return nil
}
