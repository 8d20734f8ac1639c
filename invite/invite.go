// Package invite 邀请同事加入公司：发送邀请邮件、查询与取消邀请、生成接受链接二维码。
package invite

import (
	"context"
	"net/url"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/core/validator"
	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/model"
)

// FunctionName 发送邀请邮件的边缘函数
const FunctionName = "send-invitation-email"

// 邀请状态
const (
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
	StatusAccepted  = "accepted"
)

// Request 一次邀请
type Request struct {
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"rol" validate:"required,oneof=admin agent supervisor assistant"`
	CompanyID string `json:"empresaId" validate:"required"`
}

type response struct {
	Success      bool   `json:"success"`
	InvitationID string `json:"invitationId"`
	Error        string `json:"error"`
	Code         string `json:"code"`
}

// Service 邀请服务
type Service struct {
	functions backend.Functions
	rows      backend.Rows
	session   func() *backend.Session
	acceptURL string
	clock     clockwork.Clock
	logger    *log.Logger
}

type Option func(*Service)

// WithSession 提供当前会话，没有会话时拒绝发送
func WithSession(fn func() *backend.Session) Option {
	return func(s *Service) {
		s.session = fn
	}
}

// WithAcceptURL 接受邀请页面的地址，token 作为查询参数附加
func WithAcceptURL(u string) Option {
	return func(s *Service) {
		s.acceptURL = u
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func New(client *backend.Client, opts ...Option) *Service {
	s := &Service{
		functions: client.Functions,
		rows:      client.Rows,
		acceptURL: "http://localhost:5173/accept-invitation",
		clock:     clockwork.NewRealClock(),
		logger:    log.G,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Component("invite")
	return s
}

// Send 调用边缘函数创建邀请并发信，返回邀请 id
func (s *Service) Send(ctx context.Context, req Request) (string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Validate.Struct(&req); err != nil {
		return "", errors.InvalidInput("%v", err).WithCause(err)
	}
	if s.session != nil && s.session() == nil {
		return "", errors.Unauthenticated("no active session").WithMetadata("code", "NO_SESSION")
	}

	var res response
	if err := s.functions.Invoke(ctx, FunctionName, req, &res); err != nil {
		return "", errors.New(errors.CodeFetchFailed, "invoke %s", FunctionName).WithCause(err).WithMetadata("code", "INVOKE_ERROR")
	}
	if res.Error != "" || !res.Success {
		return "", functionError(res)
	}
	s.logger.Info().Str("email", req.Email).Str("role", req.Role).Str("invitation_id", res.InvitationID).Msg("invitation sent")
	return res.InvitationID, nil
}

// functionError 边缘函数返回的业务错误
func functionError(res response) error {
	code := res.Code
	if code == "" {
		code = "FUNCTION_ERROR"
	}
	var e *errors.Error
	switch code {
	case "AUTH_HEADER_MISSING", "AUTH_INVALID", "SESSION_EXPIRED":
		e = errors.Unauthenticated("%s", res.Error)
	case "RESEND_NOT_CONFIGURED", "SUPABASE_NOT_CONFIGURED":
		e = errors.New(errors.CodeRetryableFetch, "%s", res.Error)
	default:
		e = errors.InvalidInput("%s", res.Error)
	}
	return e.WithMetadata("code", code)
}

// Pending 公司待接受的邀请，最新的在前
func (s *Service) Pending(ctx context.Context, companyID string) ([]model.Invitation, error) {
	return backend.List[model.Invitation](ctx, s.rows, backend.From(model.TableInvitations).
		Eq("empresa_id", companyID).
		Eq("status", StatusPending).
		Order("created_at", true))
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	var updated []model.Invitation
	err := s.rows.Update(ctx, backend.From(model.TableInvitations).Eq("id", id),
		map[string]any{"status": StatusCancelled}, &updated)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return errors.NotFound("invitation %s not found", id)
	}
	return nil
}

// Verify 校验 token 对应的待接受邀请，返回邀请及其公司
func (s *Service) Verify(ctx context.Context, token string) (*model.Invitation, *model.Company, error) {
	inv, err := backend.MaybeSingle[model.Invitation](ctx, s.rows, backend.From(model.TableInvitations).
		Eq("token", token).
		Eq("status", StatusPending))
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, errors.NotFound("invitation not found")
	}
	if !inv.ExpiresAt.IsZero() && !s.clock.Now().Before(inv.ExpiresAt) {
		return nil, nil, errors.InvalidInput("invitation expired").WithMetadata("code", "EXPIRED")
	}
	company, err := backend.MaybeSingle[model.Company](ctx, s.rows, backend.From(model.TableCompanies).Eq("id", inv.CompanyID))
	if err != nil {
		return nil, nil, err
	}
	return inv, company, nil
}

// AcceptURL 邀请接受链接
func (s *Service) AcceptURL(token string) string {
	u, err := url.Parse(s.acceptURL)
	if err != nil {
		return s.acceptURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
