package errors

import "net/http"

// 会话与缓存相关错误码
const (
	CodeUnknown         = 500
	CodeInvalidInput    = 400
	CodeUnauthenticated = 401
	CodeNotFound        = 404
	CodeStaleSession    = 419
	CodeRateLimited     = 429
	CodeRetryableFetch  = 503
	CodeFetchFailed     = 502
)

// 哨兵错误，配合 Is 按错误码匹配
var (
	ErrUnauthenticated = New(CodeUnauthenticated, "no active session")
	ErrStaleSession    = New(CodeStaleSession, "session expired")
	ErrRetryableFetch  = New(CodeRetryableFetch, "session fetch failed")
	ErrInvalidInput    = New(CodeInvalidInput, "invalid input")
	ErrNotFound        = New(CodeNotFound, "not found")
	ErrFetchFailed     = New(CodeFetchFailed, "list fetch failed")
	ErrRateLimited     = New(CodeRateLimited, "too many requests")
)

func Unauthenticated(format string, args ...any) *Error {
	return New(CodeUnauthenticated, format, args...)
}

func StaleSession(format string, args ...any) *Error {
	return New(CodeStaleSession, format, args...)
}

func RetryableFetch(cause error) *Error {
	return ErrRetryableFetch.WithCause(cause)
}

func InvalidInput(format string, args ...any) *Error {
	return New(CodeInvalidInput, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

// HTTPStatus 将错误码映射为 HTTP 状态码
func HTTPStatus(err error) int {
	switch c := Code(err); {
	case c == 0:
		return http.StatusOK
	case c == CodeStaleSession:
		return http.StatusUnauthorized
	case c >= 400 && c < 600:
		return c
	default:
		return http.StatusInternalServerError
	}
}
