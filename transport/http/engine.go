package http

import (
	"github.com/gin-gonic/gin"

	"github.com/kochabx/rentoso/transport/http/middleware"
)

func newEngine(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(true),
		middleware.GinLogger(),
		middleware.CorsWithConfig(cfg.Cors),
	)
	return r
}
