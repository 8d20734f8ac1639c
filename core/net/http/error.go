package http

import (
	"encoding/json"
	"fmt"
)

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// 托管后端各服务的错误体字段不统一，按顺序取第一个非空值
func parseMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	for _, k := range []string{"error_description", "msg", "message", "error"} {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
