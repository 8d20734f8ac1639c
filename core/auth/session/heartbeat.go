package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/audit"
	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/core/scheduler"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/metrics"
	"github.com/kochabx/rentoso/model"
)

// DefaultHeartbeatInterval 心跳周期
const DefaultHeartbeatInterval = 10 * time.Minute

// Heartbeat 定期查询会话并做一次轻量读取，仅用于诊断，从不修改会话状态
type Heartbeat struct {
	auth     backend.Auth
	rows     backend.Rows
	interval time.Duration
	timeout  time.Duration
	clock    clockwork.Clock
	sink     audit.Sink
	logger   *log.Logger
	periodic *scheduler.Periodic
}

type HeartbeatOption func(*Heartbeat)

func WithInterval(d time.Duration) HeartbeatOption {
	return func(h *Heartbeat) {
		h.interval = d
	}
}

// WithTickTimeout 单次心跳的超时
func WithTickTimeout(d time.Duration) HeartbeatOption {
	return func(h *Heartbeat) {
		h.timeout = d
	}
}

func WithHeartbeatSink(s audit.Sink) HeartbeatOption {
	return func(h *Heartbeat) {
		h.sink = s
	}
}

func WithHeartbeatClock(c clockwork.Clock) HeartbeatOption {
	return func(h *Heartbeat) {
		h.clock = c
	}
}

func WithHeartbeatLogger(l *log.Logger) HeartbeatOption {
	return func(h *Heartbeat) {
		h.logger = l
	}
}

func NewHeartbeat(auth backend.Auth, rows backend.Rows, opts ...HeartbeatOption) *Heartbeat {
	h := &Heartbeat{
		auth:     auth,
		rows:     rows,
		interval: DefaultHeartbeatInterval,
		timeout:  30 * time.Second,
		clock:    clockwork.NewRealClock(),
		sink:     audit.Nop{},
		logger:   log.G,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Component("session.heartbeat")
	h.periodic = scheduler.NewPeriodic(h.interval, h.run, h.clock, h.logger)
	return h
}

// Start 已在运行时不做任何事
func (h *Heartbeat) Start() {
	if h.periodic.Start() {
		h.logger.Debug().Dur("interval", h.interval).Msg("heartbeat started")
	}
}

// Stop 未运行时不做任何事
func (h *Heartbeat) Stop() {
	if h.periodic.Stop() {
		h.logger.Debug().Msg("heartbeat stopped")
	}
}

func (h *Heartbeat) Running() bool {
	return h.periodic.Running()
}

func (h *Heartbeat) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	_ = h.tick(ctx)
}

// tick 错误只用于测试观察，调用方忽略
func (h *Heartbeat) tick(ctx context.Context) error {
	err := h.check(ctx)
	if err == nil {
		metrics.HeartbeatTicks.WithLabelValues("ok").Inc()
		return nil
	}

	metrics.HeartbeatTicks.WithLabelValues("error").Inc()
	h.logger.Warn().Err(err).Msg("heartbeat check failed")
	if serr := h.sink.Record(ctx, audit.Event{
		Type:   audit.HeartbeatFailed,
		At:     h.clock.Now(),
		Fields: map[string]string{"error": err.Error()},
	}); serr != nil {
		h.logger.Debug().Err(serr).Msg("audit record failed")
	}
	return err
}

func (h *Heartbeat) check(ctx context.Context) error {
	s, err := h.auth.GetSession(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		h.logger.Debug().Msg("heartbeat: no active session")
	}
	var rows []struct {
		UserID string `json:"user_id"`
	}
	return h.rows.Select(ctx, backend.From(model.TableProfiles).Select("user_id").WithLimit(1), &rows)
}
