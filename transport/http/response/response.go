// Package response 统一 {code, data, message} 响应信封。
package response

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/rentoso/errors"
)

const (
	defaultSuccessMessage = "success"
	successCode           = http.StatusOK

	defaultErrorMessage = "service temporarily unavailable"
	defaultErrorCode    = http.StatusServiceUnavailable
)

type Response struct {
	Code    int    `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r *Response) reset() {
	r.Code = 0
	r.Data = nil
	r.Message = ""
}

var responsePool = sync.Pool{
	New: func() any {
		return &Response{}
	},
}

func acquireResponse() *Response {
	return responsePool.Get().(*Response)
}

func releaseResponse(r *Response) {
	if r != nil {
		r.reset()
		responsePool.Put(r)
	}
}

// GinJSON 写入成功响应
func GinJSON(c *gin.Context, data any) {
	if c == nil {
		return
	}
	resp := acquireResponse()
	defer releaseResponse(resp)

	resp.Code = successCode
	resp.Data = data
	resp.Message = defaultSuccessMessage
	c.JSON(successCode, resp)
}

// GinJSONE 写入错误响应并中止后续处理。
// 业务码取自错误，HTTP 状态按业务码映射
func GinJSONE(c *gin.Context, err error) {
	if c == nil {
		return
	}
	defer c.Abort()

	resp := acquireResponse()
	defer releaseResponse(resp)

	if err == nil {
		resp.Code = defaultErrorCode
		resp.Message = defaultErrorMessage
		c.JSON(defaultErrorCode, resp)
		return
	}

	e := errors.FromError(err)
	resp.Code = e.Code
	resp.Message = e.Message
	if len(e.Metadata) > 0 {
		resp.Data = e.Metadata
	}
	c.JSON(Status(e.Code), resp)
}

// Status 业务码对应的 HTTP 状态
func Status(code int) int {
	switch {
	case code == errors.CodeStaleSession:
		return http.StatusUnauthorized
	case code >= 400 && code < 600 && http.StatusText(code) != "":
		return code
	default:
		return http.StatusInternalServerError
	}
}
