// Package http 守护进程的本地 HTTP 接口。
package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/metrics"
	"github.com/kochabx/rentoso/transport"
)

var _ transport.Server = (*Server)(nil)

const defaultAddr = "127.0.0.1:8787"

type Server struct {
	name   string
	config Config
	engine *gin.Engine
	server *http.Server
	logger *log.Logger
}

type Option func(*Server)

func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer 创建 gin 引擎并挂载健康检查与指标，register 用于挂载业务路由
func NewServer(cfg Config, register func(gin.IRouter), opts ...Option) (*Server, error) {
	if err := cfg.init(); err != nil {
		return nil, err
	}
	gin.SetMode(cfg.Mode)

	s := &Server{name: "http", config: cfg, logger: log.G}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = newEngine(cfg)
	additionalHandlers(s)
	if register != nil {
		register(s.engine)
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s, nil
}

// Handler 测试中直接驱动路由
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run() error {
	if !transport.ValidateAddress(s.server.Addr) {
		s.logger.Warn().Msgf("invalid address %s, using default address: %s", s.server.Addr, defaultAddr)
		s.server.Addr = defaultAddr
	}
	s.logger.Info().Msgf("%s server listening on %s", s.name, s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func additionalHandlers(s *Server) {
	handleMetrics(s, s.engine)
	handleHealth(s, s.engine)
}

var collectorsOnce sync.Once

func handleMetrics(s *Server, r *gin.Engine) {
	opt := s.config.Metrics
	if opt.Disabled {
		return
	}
	collectorsOnce.Do(func() {
		if opt.EnabledGoCollector {
			metrics.Prom.WithGoCollectorRuntimeMetrics()
		}
		if opt.EnabledBuildInfoCollector {
			metrics.Prom.WithBuildInfoCollector()
		}
	})
	r.GET(opt.Path, gin.WrapH(promhttp.HandlerFor(metrics.Prom.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))
}

func handleHealth(s *Server, r *gin.Engine) {
	if s.config.Health.Disabled {
		return
	}
	r.GET(s.config.Health.Path, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
