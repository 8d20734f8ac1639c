// Package app 管理守护进程中服务、后台任务与关闭函数的生命周期。
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/transport"
)

var (
	ErrAlreadyStarted = errors.New(errors.CodeUnknown, "application already started")
	ErrClosePanic     = errors.New(errors.CodeUnknown, "close function panicked")
)

// Application 管理服务器、后台任务和关闭函数
type Application struct {
	ctx             context.Context
	cancel          context.CancelFunc
	shutdownTimeout time.Duration
	closeTimeout    time.Duration
	signals         []os.Signal
	servers         []transport.Server
	workers         []Worker
	closeFuncs      []CloseFunc
	logger          *log.Logger
	mu              sync.RWMutex
	started         bool
}

// Worker 随应用运行的后台任务，ctx 取消时应返回
type Worker struct {
	Name string
	Run  func(context.Context) error
}

// CloseFunc 具有超时的关闭函数，按注册的逆序执行
type CloseFunc struct {
	Name    string
	Fn      func(context.Context) error
	Timeout time.Duration
}

type Option func(*Application)

func WithContext(ctx context.Context) Option {
	return func(app *Application) {
		if ctx != nil {
			app.ctx, app.cancel = context.WithCancel(ctx)
		}
	}
}

func WithShutdownTimeout(timeout time.Duration) Option {
	return func(app *Application) {
		if timeout > 0 {
			app.shutdownTimeout = timeout
		}
	}
}

func WithCloseTimeout(timeout time.Duration) Option {
	return func(app *Application) {
		if timeout > 0 {
			app.closeTimeout = timeout
		}
	}
}

func WithSignals(signals ...os.Signal) Option {
	return func(app *Application) {
		if len(signals) > 0 {
			app.signals = append([]os.Signal(nil), signals...)
		}
	}
}

func WithServers(servers ...transport.Server) Option {
	return func(app *Application) {
		for _, s := range servers {
			if s != nil {
				app.servers = append(app.servers, s)
			}
		}
	}
}

// WithWorker 添加后台任务，任务返回非 nil 错误会终止应用
func WithWorker(name string, run func(context.Context) error) Option {
	return func(app *Application) {
		if run != nil {
			app.workers = append(app.workers, Worker{Name: name, Run: run})
		}
	}
}

func WithClose(name string, fn func(context.Context) error, timeout time.Duration) Option {
	return func(app *Application) {
		app.addClose(name, fn, timeout)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(app *Application) {
		app.logger = l
	}
}

func New(options ...Option) *Application {
	app := &Application{
		shutdownTimeout: 30 * time.Second,
		closeTimeout:    10 * time.Second,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
		logger:          log.G,
	}
	app.ctx, app.cancel = context.WithCancel(context.Background())
	for _, opt := range options {
		opt(app)
	}
	app.logger = app.logger.Component("app")
	return app
}

// RegisterClose 在运行时追加关闭函数
func (app *Application) RegisterClose(name string, fn func(context.Context) error, timeout time.Duration) error {
	if fn == nil {
		return errors.InvalidInput("close function cannot be nil")
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	app.addClose(name, fn, timeout)
	return nil
}

func (app *Application) addClose(name string, fn func(context.Context) error, timeout time.Duration) {
	if fn == nil {
		app.logger.Warn().Str("name", name).Msg("nil close function ignored")
		return
	}
	if timeout <= 0 {
		timeout = app.closeTimeout
	}
	app.closeFuncs = append(app.closeFuncs, CloseFunc{Name: name, Fn: fn, Timeout: timeout})
}

// Start 启动全部服务和后台任务，阻塞直到收到信号、Stop 或任一组件失败
func (app *Application) Start() error {
	app.mu.Lock()
	if app.started {
		app.mu.Unlock()
		return ErrAlreadyStarted
	}
	app.started = true
	servers := append([]transport.Server(nil), app.servers...)
	workers := append([]Worker(nil), app.workers...)
	app.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, app.signals...)
	defer signal.Stop(sigCh)

	eg, ctx := errgroup.WithContext(app.ctx)
	for _, s := range servers {
		eg.Go(func() error {
			if err := s.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
			defer cancel()
			return s.Shutdown(shutdownCtx)
		})
	}
	for _, w := range workers {
		eg.Go(func() error {
			app.logger.Debug().Str("worker", w.Name).Msg("worker started")
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return errors.Wrap(err, errors.CodeUnknown, "worker %s", w.Name)
			}
			return nil
		})
	}
	eg.Go(func() error {
		select {
		case sig := <-sigCh:
			app.logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			app.cancel()
		case <-ctx.Done():
		}
		return nil
	})

	err := eg.Wait()
	app.runCloseTasks()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (app *Application) Stop() {
	app.cancel()
}

func (app *Application) runCloseTasks() {
	app.mu.RLock()
	closeFuncs := append([]CloseFunc(nil), app.closeFuncs...)
	app.mu.RUnlock()

	for i := len(closeFuncs) - 1; i >= 0; i-- {
		_ = app.runCloseTask(closeFuncs[i])
	}
}

func (app *Application) runCloseTask(c CloseFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				app.logger.Error().Interface("panic", r).Str("close", c.Name).Msg("close function panicked")
				done <- ErrClosePanic
			}
		}()
		done <- c.Fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			app.logger.Error().Err(err).Str("close", c.Name).Msg("close function failed")
		}
		return err
	case <-ctx.Done():
		app.logger.Warn().Str("close", c.Name).Msg("close function timed out")
		return ctx.Err()
	}
}

// Info 应用状态
func (app *Application) Info() ApplicationInfo {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return ApplicationInfo{
		Started:     app.started,
		ServerCount: len(app.servers),
		WorkerCount: len(app.workers),
		CloseCount:  len(app.closeFuncs),
	}
}

type ApplicationInfo struct {
	Started     bool `json:"started"`
	ServerCount int  `json:"server_count"`
	WorkerCount int  `json:"worker_count"`
	CloseCount  int  `json:"close_count"`
}
