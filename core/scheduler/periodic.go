package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/kochabx/rentoso/log"
)

// Periodic 以固定间隔执行单个任务，Start/Stop 均幂等。
// 节拍来自注入的时钟，任务外层套 cron 的 Recover 与 SkipIfStillRunning。
type Periodic struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func(ctx context.Context)
	clock    clockwork.Clock
	logger   *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPeriodic interval 小于 1s 时按 1s 执行；clock 为 nil 时使用真实时钟
func NewPeriodic(interval time.Duration, fn func(ctx context.Context), clock clockwork.Clock, logger *log.Logger) *Periodic {
	if logger == nil {
		logger = log.G
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Periodic{interval: max(interval, time.Second), fn: fn, clock: clock, logger: logger}
}

// Start 已在运行时返回 false
func (p *Periodic) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{p.logger}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { p.fn(ctx) }))
	ticker := p.clock.NewTicker(p.interval)
	p.cancel, p.done = cancel, make(chan struct{})
	go p.loop(ctx, ticker, job, p.done)
	return true
}

func (p *Periodic) loop(ctx context.Context, ticker clockwork.Ticker, job cron.Job, done chan struct{}) {
	var wg sync.WaitGroup
	defer close(done)
	defer wg.Wait()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			wg.Add(1)
			go func() {
				defer wg.Done()
				job.Run()
			}()
		}
	}
}

// Stop 取消正在执行的任务并等待其返回；未运行时返回 false
func (p *Periodic) Stop() bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// cronLogger 将 cron 内部日志接入 zerolog
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug().Fields(kv).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error().Err(err).Fields(kv).Msg(msg)
}

var _ cron.Logger = cronLogger{}
