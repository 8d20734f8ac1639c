package rest

import (
	"context"
	"net/url"
	"time"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/core/auth/jwt"
	xhttp "github.com/kochabx/rentoso/core/net/http"
	"github.com/kochabx/rentoso/errors"
)

// Auth GoTrue 接口
type Auth struct {
	c *Client
}

// signUpResponse 需要邮箱确认时只返回用户
type signUpResponse struct {
	backend.Session
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (a *Auth) SignUp(ctx context.Context, p backend.SignUpParams) (*backend.Session, error) {
	body := map[string]any{
		"email":    p.Email,
		"password": p.Password,
		"data": map[string]any{
			"full_name":    p.FullName,
			"company_name": p.CompanyName,
			"phone":        p.Phone,
		},
	}
	var opts []xhttp.RequestOption
	if p.RedirectTo != "" {
		opts = append(opts, xhttp.Query(url.Values{"redirect_to": {p.RedirectTo}}))
	}
	var resp signUpResponse
	opts = append(opts, xhttp.Into(&resp))
	if _, err := a.c.http.Post(ctx, a.c.endpoint("/auth/v1/signup"), body, opts...); err != nil {
		return nil, mapError(err, "sign up")
	}
	if resp.AccessToken == "" {
		return nil, nil
	}
	s := a.accept(&resp.Session)
	a.c.listeners.Emit(backend.EventSignedIn, s)
	return s, nil
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	s, err := a.token(ctx, "password", map[string]any{"email": email, "password": password})
	if err != nil {
		return nil, mapError(err, "sign in")
	}
	a.c.listeners.Emit(backend.EventSignedIn, s)
	return s, nil
}

// SignOut 本地会话总是被清除，远端失败时返回错误
func (a *Auth) SignOut(ctx context.Context) error {
	bearer := a.c.bearer()
	a.c.mu.Lock()
	had := a.c.session != nil
	a.c.session = nil
	a.c.mu.Unlock()

	var err error
	if had {
		_, err = a.c.http.Post(ctx, a.c.endpoint("/auth/v1/logout"), nil,
			bearer, xhttp.Query(url.Values{"scope": {"global"}}))
	}
	a.c.listeners.Emit(backend.EventSignedOut, nil)
	return mapError(err, "sign out")
}

func (a *Auth) GetSession(ctx context.Context) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.c.mu.RLock()
	defer a.c.mu.RUnlock()
	if a.c.session == nil {
		return nil, nil
	}
	s := *a.c.session
	return &s, nil
}

// SetSession 先用访问令牌取用户，失败时用刷新令牌换新
func (a *Auth) SetSession(ctx context.Context, s *backend.Session) (*backend.Session, error) {
	if s == nil {
		return nil, errors.Unauthenticated("no session to restore")
	}
	if !s.Expired(a.c.clock.Now()) {
		var u backend.User
		if _, err := a.c.http.Get(ctx, a.c.endpoint("/auth/v1/user"), xhttp.Bearer(s.AccessToken), xhttp.Into(&u)); err == nil {
			restored := *s
			restored.User = u
			out := a.accept(&restored)
			a.c.listeners.Emit(backend.EventSignedIn, out)
			return out, nil
		}
	}
	out, err := a.token(ctx, "refresh_token", map[string]any{"refresh_token": s.RefreshToken})
	if err != nil {
		return nil, mapError(err, "restore session")
	}
	a.c.listeners.Emit(backend.EventTokenRefreshed, out)
	return out, nil
}

func (a *Auth) GetUser(ctx context.Context) (*backend.User, error) {
	a.c.mu.RLock()
	has := a.c.session != nil
	a.c.mu.RUnlock()
	if !has {
		return nil, errors.Unauthenticated("auth session missing")
	}
	var u backend.User
	if _, err := a.c.http.Get(ctx, a.c.endpoint("/auth/v1/user"), a.c.bearer(), xhttp.Into(&u)); err != nil {
		return nil, mapError(err, "get user")
	}
	return &u, nil
}

func (a *Auth) RefreshSession(ctx context.Context) (*backend.Session, error) {
	a.c.mu.RLock()
	cur := a.c.session
	a.c.mu.RUnlock()
	if cur == nil {
		return nil, errors.Unauthenticated("auth session missing")
	}
	s, err := a.token(ctx, "refresh_token", map[string]any{"refresh_token": cur.RefreshToken})
	if err != nil {
		return nil, mapError(err, "refresh session")
	}
	a.c.listeners.Emit(backend.EventTokenRefreshed, s)
	return s, nil
}

func (a *Auth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var opts []xhttp.RequestOption
	if redirectTo != "" {
		opts = append(opts, xhttp.Query(url.Values{"redirect_to": {redirectTo}}))
	}
	_, err := a.c.http.Post(ctx, a.c.endpoint("/auth/v1/recover"), map[string]any{"email": email}, opts...)
	return mapError(err, "reset password")
}

func (a *Auth) UpdatePassword(ctx context.Context, password string) (*backend.User, error) {
	var u backend.User
	if _, err := a.c.http.Do(ctx, xhttp.MethodPut, a.c.endpoint("/auth/v1/user"),
		map[string]any{"password": password}, a.c.bearer(), xhttp.Into(&u)); err != nil {
		return nil, mapError(err, "update password")
	}
	a.c.mu.Lock()
	var s *backend.Session
	if a.c.session != nil {
		a.c.session.User = u
		cp := *a.c.session
		s = &cp
	}
	a.c.mu.Unlock()
	a.c.listeners.Emit(backend.EventUserUpdated, s)
	return &u, nil
}

func (a *Auth) OnAuthStateChange(fn backend.AuthListener) backend.Subscription {
	return a.c.listeners.Add(fn)
}

func (a *Auth) token(ctx context.Context, grant string, body map[string]any) (*backend.Session, error) {
	var s backend.Session
	if _, err := a.c.http.Post(ctx, a.c.endpoint("/auth/v1/token"), body,
		xhttp.Query(url.Values{"grant_type": {grant}}), xhttp.Into(&s)); err != nil {
		return nil, err
	}
	return a.accept(&s), nil
}

// accept 补全 expires_at 后保存为当前会话
func (a *Auth) accept(s *backend.Session) *backend.Session {
	if s.ExpiresAt == 0 {
		if exp, err := jwt.Expiry(s.AccessToken); err == nil && !exp.IsZero() {
			s.ExpiresAt = exp.Unix()
		} else if s.ExpiresIn > 0 {
			s.ExpiresAt = a.c.clock.Now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
		}
	}
	cp := *s
	a.c.mu.Lock()
	a.c.session = &cp
	a.c.mu.Unlock()
	return s
}
