package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kochabx/rentoso/core/rate"
	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/transport/http/response"
)

// RateLimit 按客户端 IP 限流，限流器出错时放行
func RateLimit(l rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), c.FullPath()+"|"+c.ClientIP())
		if err != nil {
			log.Warn().Err(err).Str("path", c.FullPath()).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !ok {
			response.GinJSONE(c, errors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
