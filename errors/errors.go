package errors

import (
	goerrors "errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Status 错误的可序列化部分
type Status struct {
	Code     int               `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error 带错误码的结构化错误
type Error struct {
	Status
	cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("code=")
	b.WriteString(strconv.Itoa(e.Code))
	b.WriteString(", message=")
	b.WriteString(e.Message)

	if len(e.Metadata) > 0 {
		// 按 key 排序，保证输出稳定
		keys := slices.Sorted(maps.Keys(e.Metadata))
		b.WriteString(", metadata={")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(e.Metadata[k])
		}
		b.WriteByte('}')
	}

	if e.cause != nil {
		b.WriteString(", cause=")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is 错误码相同即视为同一类错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMetadata 返回附加了元数据的新错误
func (e *Error) WithMetadata(kv ...string) *Error {
	if len(kv) < 2 {
		return e
	}
	err := e.clone()
	if err.Metadata == nil {
		err.Metadata = make(map[string]string, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		err.Metadata[kv[i]] = kv[i+1]
	}
	return err
}

// WithCause 返回附加了底层原因的新错误
func (e *Error) WithCause(cause error) *Error {
	if cause == nil {
		return e
	}
	err := e.clone()
	err.cause = cause
	return err
}

func (e *Error) clone() *Error {
	c := &Error{Status: Status{Code: e.Code, Message: e.Message}, cause: e.cause}
	if len(e.Metadata) > 0 {
		c.Metadata = maps.Clone(e.Metadata)
	}
	return c
}

// New 创建错误
func New(code int, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Status: Status{Code: code, Message: msg}}
}

// Wrap 包装底层错误，err 为 nil 时返回 nil
func Wrap(err error, code int, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return New(code, format, args...).WithCause(err)
}

// FromError 将任意错误转换为 *Error，非结构化错误归为 CodeUnknown
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if As(err, &e) {
		return e
	}
	return New(CodeUnknown, "%v", err).WithCause(err)
}

// Code 返回错误码，nil 返回 0
func Code(err error) int {
	if err == nil {
		return 0
	}
	return FromError(err).Code
}

// 标准库函数，调用方只需导入本包

func Unwrap(err error) error { return goerrors.Unwrap(err) }

func Is(err, target error) bool { return goerrors.Is(err, target) }

func As(err error, target any) bool { return goerrors.As(err, target) }

func Join(errs ...error) error { return goerrors.Join(errs...) }
