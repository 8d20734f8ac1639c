// Package audit 记录会话生命周期事件。
package audit

import (
	"context"
	"time"

	"github.com/kochabx/rentoso/errors"
)

// Type 事件类型
type Type string

const (
	SignIn          Type = "sign_in"
	SignOut         Type = "sign_out"
	TokenRefreshed  Type = "token_refreshed"
	SessionRestored Type = "session_restored"
	SessionExpired  Type = "session_expired"
	HeartbeatFailed Type = "heartbeat_failed"
)

// Event 单条审计记录
type Event struct {
	Type   Type              `json:"type"`
	UserID string            `json:"user_id,omitempty"`
	At     time.Time         `json:"at"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Sink 审计落点，实现必须可并发调用
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Multi 依次写入所有落点，合并错误
type Multi []Sink

func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
