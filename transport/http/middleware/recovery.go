package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/rentoso/transport/http/response"
)

// Recovery 捕获 panic，断开的连接只记警告
func Recovery(stackTrace bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				request, _ := httputil.DumpRequest(c.Request, false)
				if isBrokenPipe(err) {
					log.Warn().Str("error", fmt.Sprint(err)).Bytes("request", request).Msg("broken pipe")
					_ = c.Error(fmt.Errorf("%v", err))
					c.Abort()
					return
				}

				event := log.Error().Str("error", fmt.Sprint(err)).Bytes("request", request)
				if stackTrace {
					event = event.Bytes("stack", debug.Stack())
				}
				event.Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
					Code:    http.StatusInternalServerError,
					Message: "internal error",
				})
			}
		}()
		c.Next()
	}
}

func isBrokenPipe(err any) bool {
	ne, ok := err.(*net.OpError)
	if !ok {
		return false
	}
	se, ok := ne.Err.(*os.SyscallError)
	if !ok {
		return false
	}
	s := strings.ToLower(se.Error())
	return strings.Contains(s, "broken pipe") || strings.Contains(s, "connection reset by peer")
}
