// Package backend 描述托管后端（认证、行存储、文件存储、边缘函数）的客户端接口。
package backend

import (
	"context"
	"io"
)

// SignUpParams 注册参数，Metadata 写入 user_metadata
type SignUpParams struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
	RedirectTo  string `json:"-"`
}

// Auth 认证接口
type Auth interface {
	// SignUp 需要邮箱确认时返回的会话为 nil
	SignUp(ctx context.Context, p SignUpParams) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignOut 全局登出，使所有设备上的刷新令牌失效
	SignOut(ctx context.Context) error
	// GetSession 返回客户端当前持有的会话，没有时为 nil
	GetSession(ctx context.Context) (*Session, error)
	// SetSession 恢复已持久化的会话
	SetSession(ctx context.Context, s *Session) (*Session, error)
	GetUser(ctx context.Context) (*User, error)
	RefreshSession(ctx context.Context) (*Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, password string) (*User, error)
	OnAuthStateChange(fn AuthListener) Subscription
}

// Rows 受行级策略约束的表访问，dest 为切片指针
type Rows interface {
	Select(ctx context.Context, q *Query, dest any) error
	Insert(ctx context.Context, table string, row any, dest any) error
	Update(ctx context.Context, q *Query, patch any, dest any) error
}

// Storage 对象存储
type Storage interface {
	Upload(ctx context.Context, bucket, path string, r io.Reader, size int64, contentType string) error
	PublicURL(bucket, path string) string
	Remove(ctx context.Context, bucket string, paths ...string) error
}

// Functions 边缘函数，in 序列化为 JSON 请求体，响应解码到 out
type Functions interface {
	Invoke(ctx context.Context, name string, in, out any) error
}

// Client 后端各能力的组合
type Client struct {
	Auth      Auth
	Rows      Rows
	Storage   Storage
	Functions Functions
}
