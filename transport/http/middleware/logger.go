package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/rentoso/metrics"
)

// LoggerConfig 日志中间件配置
type LoggerConfig struct {
	// HandlerEnabled 是否记录处理器名称
	HandlerEnabled bool
	// SkipPaths 跳过记录的路径前缀，仍计入指标
	SkipPaths []string
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{SkipPaths: []string{"/healthz", "/metrics"}}
}

func GinLogger() gin.HandlerFunc {
	return GinLoggerWithConfig(DefaultLoggerConfig())
}

// GinLoggerWithConfig 记录访问日志并更新请求指标
func GinLoggerWithConfig(config LoggerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(duration.Seconds())

		if skippedPathPrefixes(c, config.SkipPaths...) {
			return
		}

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		}
		event = event.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("uri", c.Request.RequestURI).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())
		if config.HandlerEnabled {
			event = event.Str("handler", c.HandlerName())
		}
		if requestID := c.GetHeader("X-Request-Id"); requestID != "" {
			event = event.Str("request_id", requestID)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.ByType(gin.ErrorTypePrivate).String())
		}
		event.Send()
	}
}
