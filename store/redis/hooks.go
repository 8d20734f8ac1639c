package redis

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/rentoso/log"
)

// DebugHook 命令日志与慢命令检测
type DebugHook struct {
	logger        *log.Logger
	slowThreshold time.Duration
}

func NewDebugHook(logger *log.Logger, slowThreshold time.Duration) *DebugHook {
	return &DebugHook{logger: logger, slowThreshold: slowThreshold}
}

func (h *DebugHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.logger.Error().Str("addr", addr).Dur("duration", time.Since(start)).Err(err).Msg("redis dial failed")
		}
		return conn, err
	}
}

func (h *DebugHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(cmd.FullName(), 1, time.Since(start), err)
		return err
	}
}

func (h *DebugHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observe("pipeline", len(cmds), time.Since(start), err)
		return err
	}
}

// observe 不记录参数，键值中可能含有会话令牌
func (h *DebugHook) observe(name string, count int, d time.Duration, err error) {
	switch {
	case err != nil && err != redis.Nil:
		h.logger.Warn().Str("cmd", name).Int("count", count).Dur("duration", d).Err(err).Msg("redis command failed")
	case h.slowThreshold > 0 && d > h.slowThreshold:
		h.logger.Warn().Str("cmd", name).Int("count", count).Dur("duration", d).Dur("threshold", h.slowThreshold).Msg("slow redis command")
	default:
		h.logger.Debug().Str("cmd", name).Int("count", count).Dur("duration", d).Msg("redis command")
	}
}
