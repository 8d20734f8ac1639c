package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/core/auth/jwt"
	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/model"
)

type account struct {
	user backend.User
	hash []byte
}

// Auth 内存认证，行为对齐托管后端：登录、刷新、登出都会广播事件
type Auth struct {
	mu       sync.Mutex
	accounts map[string]*account // email -> account
	current  *backend.Session
	revoked  map[string]bool // session_id
	resets   []string

	// AutoConfirm 为 false 时注册不返回会话，需邮箱确认
	AutoConfirm bool

	tokens    *jwt.JWT
	clock     clockwork.Clock
	rows      *Rows
	faults    *Faults
	listeners backend.Listeners
	logger    *log.Logger
}

func newAuth(tokens *jwt.JWT, clock clockwork.Clock, rows *Rows, faults *Faults, logger *log.Logger) *Auth {
	return &Auth{
		accounts:    make(map[string]*account),
		revoked:     make(map[string]bool),
		AutoConfirm: true,
		tokens:      tokens,
		clock:       clock,
		rows:        rows,
		faults:      faults,
		logger:      logger,
	}
}

// AddUser 创建账号，不登录也不写 profiles
func (a *Auth) AddUser(id, email, password string, metadata map[string]any) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.ToLower(email)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.accounts[email]; ok {
		return errors.InvalidInput("user already registered").WithMetadata("email", email)
	}
	a.accounts[email] = &account{
		user: backend.User{ID: id, Email: email, UserMetadata: metadata, CreatedAt: a.clock.Now().UTC()},
		hash: hash,
	}
	return nil
}

func (a *Auth) SignUp(ctx context.Context, p backend.SignUpParams) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	meta := map[string]any{"full_name": p.FullName, "company_name": p.CompanyName, "phone": p.Phone}
	if err := a.AddUser(id, p.Email, p.Password, meta); err != nil {
		return nil, err
	}

	// 对应数据库中新用户触发器写入的 profiles 行
	now := a.clock.Now().UTC()
	profile := model.Profile{
		ID:          uuid.NewString(),
		UserID:      id,
		FullName:    p.FullName,
		CompanyName: p.CompanyName,
		Phone:       p.Phone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.rows.Put(model.TableProfiles, profile); err != nil {
		return nil, err
	}

	if !a.AutoConfirm {
		return nil, nil
	}
	return a.SignInWithPassword(ctx, p.Email, p.Password)
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	acc, ok := a.accounts[strings.ToLower(email)]
	a.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, errors.InvalidInput("invalid login credentials")
	}

	s, err := a.issue(acc.user, "")
	if err != nil {
		return nil, err
	}
	a.setCurrent(s)
	a.listeners.Emit(backend.EventSignedIn, s)
	return s, nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	if err := a.faults.takeSignOut(); err != nil {
		return err
	}
	a.mu.Lock()
	if a.current != nil {
		if claims, err := a.tokens.Parse(a.current.RefreshToken); err == nil {
			a.revoked[claims.SessionID] = true
		}
	}
	a.current = nil
	a.mu.Unlock()
	a.listeners.Emit(backend.EventSignedOut, nil)
	return nil
}

// GetSession 与客户端库一致，返回本地持有的会话，不校验有效期
func (a *Auth) GetSession(ctx context.Context) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.faults.takeGetSession(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneSession(a.current), nil
}

// SetSession 恢复持久化的会话，访问令牌过期时用刷新令牌换新
func (a *Auth) SetSession(ctx context.Context, s *backend.Session) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Unauthenticated("no session to restore")
	}
	if _, err := a.tokens.Parse(s.AccessToken); err == nil {
		restored := cloneSession(s)
		a.setCurrent(restored)
		a.listeners.Emit(backend.EventSignedIn, restored)
		return restored, nil
	}
	return a.refreshWith(s.RefreshToken)
}

func (a *Auth) GetUser(ctx context.Context) (*backend.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil, errors.Unauthenticated("auth session missing")
	}
	if _, err := a.tokens.Parse(a.current.AccessToken); err != nil {
		return nil, errors.Unauthenticated("invalid access token").WithCause(err)
	}
	acc, ok := a.accounts[a.current.User.Email]
	if !ok {
		return nil, errors.NotFound("user not found")
	}
	u := acc.user
	return &u, nil
}

func (a *Auth) RefreshSession(ctx context.Context) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.faults.takeRefresh(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()
	if cur == nil {
		return nil, errors.Unauthenticated("auth session missing")
	}
	return a.refreshWith(cur.RefreshToken)
}

func (a *Auth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	// 不暴露邮箱是否存在
	if _, ok := a.accounts[strings.ToLower(email)]; ok {
		a.resets = append(a.resets, strings.ToLower(email))
	}
	a.logger.Info().Str("email", email).Str("redirect_to", redirectTo).Msg("password reset requested")
	return nil
}

func (a *Auth) UpdatePassword(ctx context.Context, password string) (*backend.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	if a.current == nil {
		a.mu.Unlock()
		return nil, errors.Unauthenticated("auth session missing")
	}
	acc, ok := a.accounts[a.current.User.Email]
	if !ok {
		a.mu.Unlock()
		return nil, errors.NotFound("user not found")
	}
	acc.hash = hash
	u := acc.user
	s := cloneSession(a.current)
	a.mu.Unlock()

	a.listeners.Emit(backend.EventUserUpdated, s)
	return &u, nil
}

func (a *Auth) OnAuthStateChange(fn backend.AuthListener) backend.Subscription {
	return a.listeners.Add(fn)
}

// Emit 模拟来自其他标签页或服务端的事件
func (a *Auth) Emit(event backend.Event, s *backend.Session) {
	a.listeners.Emit(event, s)
}

// Listeners 当前订阅数
func (a *Auth) Listeners() int {
	return a.listeners.Len()
}

// ResetRequests 已发送的重置邮件
func (a *Auth) ResetRequests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.resets...)
}

// ExpireSession 让当前会话立即过期，便于测试过期恢复
func (a *Auth) ExpireSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.ExpiresAt = a.clock.Now().Unix() - 1
	}
}

func (a *Auth) refreshWith(refreshToken string) (*backend.Session, error) {
	claims, err := a.tokens.Parse(refreshToken)
	if err != nil {
		return nil, errors.Unauthenticated("invalid refresh token").WithCause(err)
	}
	a.mu.Lock()
	revoked := a.revoked[claims.SessionID]
	var acc *account
	for _, candidate := range a.accounts {
		if candidate.user.ID == claims.Subject {
			acc = candidate
			break
		}
	}
	a.mu.Unlock()
	if revoked || acc == nil {
		return nil, errors.Unauthenticated("refresh token revoked")
	}

	s, err := a.issue(acc.user, claims.SessionID)
	if err != nil {
		return nil, err
	}
	a.setCurrent(s)
	a.listeners.Emit(backend.EventTokenRefreshed, s)
	return s, nil
}

func (a *Auth) issue(u backend.User, sessionID string) (*backend.Session, error) {
	pair, err := a.tokens.Issue(u.ID, jwt.Claims{Email: u.Email, SessionID: sessionID, UserMetadata: u.UserMetadata})
	if err != nil {
		return nil, err
	}
	return &backend.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
		User:         u,
	}, nil
}

func (a *Auth) setCurrent(s *backend.Session) {
	a.mu.Lock()
	a.current = cloneSession(s)
	a.mu.Unlock()
}

func cloneSession(s *backend.Session) *backend.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
