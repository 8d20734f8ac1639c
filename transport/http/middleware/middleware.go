// Package middleware 守护进程 HTTP 服务使用的 gin 中间件。
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	klog "github.com/kochabx/rentoso/log"
)

var log = klog.G.Component("http")

func SetLogger(logger *klog.Logger) {
	log = logger
}

func skippedPathPrefixes(c *gin.Context, prefixes ...string) bool {
	path := c.Request.URL.Path
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
