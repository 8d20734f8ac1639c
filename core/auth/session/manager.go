package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/kochabx/rentoso/audit"
	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/core/scheduler"
	"github.com/kochabx/rentoso/core/validator"
	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
	"github.com/kochabx/rentoso/metrics"
	"github.com/kochabx/rentoso/model"
	"github.com/kochabx/rentoso/preset"
)

// Manager 持有当前会话与用户数据，订阅后端认证事件。
// 生命周期由 Init 和 Dispose 控制，Dispose 之后的异步回调不再修改状态。
type Manager struct {
	config    Config
	auth      backend.Auth
	rows      backend.Rows
	persist   *Persistence
	heartbeat *Heartbeat
	resolver  *preset.Resolver
	validate  *validator.Validator
	clock     clockwork.Clock
	sink      audit.Sink
	logger    *log.Logger

	mu              sync.RWMutex
	state           State
	session         *backend.Session
	user            *backend.User
	profile         *model.Profile
	userProfile     *model.UserProfile
	agent           *model.Agent
	company         *model.Company
	preset          preset.Preset
	loadedUserID    string
	dataLoaded      bool
	explicitSignOut bool
	mounted         bool
	sub             backend.Subscription
	refreshTimer    clockwork.Timer
	refreshAt       int64
	watchers        map[int]func(Snapshot)
	nextWatcher     int
	ctx             context.Context
	cancel          context.CancelFunc

	loads singleflight.Group
}

type Option func(*Manager)

func WithConfig(c Config) Option {
	return func(m *Manager) {
		m.config = c
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func WithSink(s audit.Sink) Option {
	return func(m *Manager) {
		m.sink = s
	}
}

func WithResolver(r *preset.Resolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

func WithValidator(v *validator.Validator) Option {
	return func(m *Manager) {
		m.validate = v
	}
}

// WithHeartbeat 替换默认心跳
func WithHeartbeat(h *Heartbeat) Option {
	return func(m *Manager) {
		m.heartbeat = h
	}
}

// NewManager 创建管理器，persist 为 nil 时不持久化
func NewManager(client *backend.Client, persist *Persistence, opts ...Option) (*Manager, error) {
	m := &Manager{
		auth:     client.Auth,
		rows:     client.Rows,
		persist:  persist,
		clock:    clockwork.NewRealClock(),
		sink:     audit.Nop{},
		logger:   log.G,
		validate: validator.Validate,
		preset:   preset.Default,
		watchers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.config.init(); err != nil {
		return nil, err
	}
	m.logger = m.logger.Component("session")
	if m.resolver == nil {
		m.resolver = preset.NewResolver()
	}
	if m.heartbeat == nil {
		m.heartbeat = NewHeartbeat(m.auth, m.rows,
			WithInterval(m.config.HeartbeatInterval),
			WithHeartbeatSink(m.sink),
			WithHeartbeatClock(m.clock),
			WithHeartbeatLogger(m.logger))
	}
	if m.persist == nil {
		m.persist = NewPersistence(nopKV{}, nopKV{}, WithPersistenceLogger(m.logger))
	}
	return m, nil
}

// Init 先订阅认证事件，再带重试获取会话。重复调用无效果。
// 只有 ctx 被取消时返回错误，其余情况通过 State 体现。
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.mounted {
		m.mu.Unlock()
		return nil
	}
	m.mounted = true
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.setStateLocked(StateLoading)
	m.mu.Unlock()
	m.notify()

	sub := m.auth.OnAuthStateChange(m.onAuthEvent)
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()

	s, err := m.fetchSession(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn().Err(err).Msg("session fetch exhausted retries, trying persisted copy")
		s = m.restore(ctx)
	} else if s == nil {
		// 后端客户端重启后内存中没有会话，用持久化副本恢复
		s = m.restore(ctx)
	}
	if !m.isMounted() {
		return nil
	}

	if s != nil && s.Expired(m.clock.Now()) {
		m.logger.Info().Err(errors.StaleSession("expired at %s", s.Expiry())).Msg("refreshing stale session")
		m.setSession(s, StateRefreshing)
		refreshed, err := m.refresh(ctx)
		if err != nil {
			return nil
		}
		s = refreshed
	}

	if s == nil {
		m.mu.Lock()
		m.clearLocked()
		m.dataLoaded = true
		m.setStateLocked(StateInvalid)
		m.mu.Unlock()
		m.heartbeat.Stop()
		m.notify()
		return nil
	}

	m.accept(ctx, s)
	return nil
}

// Dispose 取消订阅、定时器与心跳，之后的异步回调全部忽略
func (m *Manager) Dispose() {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	m.mounted = false
	sub := m.sub
	m.sub = nil
	m.stopRefreshLocked()
	cancel := m.cancel
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	m.heartbeat.Stop()
}

// SignIn 成功后立即加载用户数据
func (m *Manager) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	in := signInInput{Email: email, Password: password}
	if err := m.check(&in); err != nil {
		return nil, err
	}
	s, err := m.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	m.accept(ctx, s)
	return s, nil
}

// SignUp 需要邮箱确认时返回的会话为 nil
func (m *Manager) SignUp(ctx context.Context, p backend.SignUpParams) (*backend.Session, error) {
	if err := m.check(&p); err != nil {
		return nil, err
	}
	s, err := m.auth.SignUp(ctx, p)
	if err != nil {
		return nil, err
	}
	if s != nil {
		m.accept(ctx, s)
	}
	return s, nil
}

// SignOut 先清理本地状态，后端登出失败不影响结果
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	userID := ""
	if m.session != nil {
		userID = m.session.UserID()
	}
	m.explicitSignOut = true
	m.clearLocked()
	m.dataLoaded = true
	m.stopRefreshLocked()
	m.setStateLocked(StateInvalid)
	m.mu.Unlock()
	m.notify()

	m.persist.Clear(ctx)
	m.heartbeat.Stop()

	if err := m.auth.SignOut(ctx); err != nil {
		m.logger.Debug().Err(err).Msg("backend sign-out failed, local state already cleared")
	}
	m.mu.Lock()
	m.explicitSignOut = false
	m.mu.Unlock()

	m.sweep(ctx)
	m.record(ctx, audit.SignOut, userID, nil)
	return nil
}

// CheckSession 向后端确认会话仍然有效，过期时尝试刷新
func (m *Manager) CheckSession(ctx context.Context) (*backend.Session, error) {
	s, err := m.auth.GetSession(ctx)
	if err != nil {
		m.markLoaded()
		return nil, errors.RetryableFetch(err)
	}
	if s == nil {
		m.mu.Lock()
		m.clearLocked()
		m.dataLoaded = true
		m.setStateLocked(StateInvalid)
		m.mu.Unlock()
		m.notify()
		return nil, errors.ErrUnauthenticated
	}
	if s.Expired(m.clock.Now()) {
		m.setSession(s, StateRefreshing)
		if s, err = m.refresh(ctx); err != nil {
			return nil, err
		}
	}
	m.accept(ctx, s)
	return s, nil
}

// ResetPassword 发送重置密码邮件
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	in := emailInput{Email: email}
	if err := m.check(&in); err != nil {
		return err
	}
	return m.auth.ResetPasswordForEmail(ctx, strings.TrimSpace(email), m.config.ResetRedirect)
}

// UpdatePassword 需要有效会话，常见于从重置邮件进入的页面
func (m *Manager) UpdatePassword(ctx context.Context, password string) error {
	in := passwordInput{Password: password}
	if err := m.check(&in); err != nil {
		return err
	}
	u, err := m.auth.UpdatePassword(ctx, password)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.user = clonePtr(u)
	m.mu.Unlock()
	m.notify()
	return nil
}

// LoadUserData 加载档案、经纪人与公司。同一用户只加载一次，并发调用合并为一次。
// 查询失败只记录日志，之后仍视为已加载。
func (m *Manager) LoadUserData(ctx context.Context, u backend.User) {
	if u.ID == "" || m.loaded(u.ID) {
		return
	}
	_, _, _ = m.loads.Do(u.ID, func() (any, error) {
		if m.loaded(u.ID) {
			return nil, nil
		}
		m.loadUserData(ctx, u)
		return nil, nil
	})
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session 当前会话的副本
func (m *Manager) Session() *backend.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clonePtr(m.session)
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Watch 每次状态变化后回调，返回取消函数
func (m *Manager) Watch(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) onAuthEvent(event backend.Event, s *backend.Session) {
	if !m.isMounted() {
		return
	}
	ctx := m.baseContext()

	switch event {
	case backend.EventSignedOut:
		m.mu.Lock()
		if !m.explicitSignOut {
			m.mu.Unlock()
			m.logger.Warn().Msg("ignoring unsolicited SIGNED_OUT event")
			return
		}
		m.explicitSignOut = false
		m.clearLocked()
		m.dataLoaded = true
		m.stopRefreshLocked()
		m.setStateLocked(StateInvalid)
		m.mu.Unlock()
		m.heartbeat.Stop()
		m.notify()

	case backend.EventTokenRefreshed, backend.EventPasswordRecovery:
		if s == nil {
			return
		}
		m.setSession(s, StateValid)
		m.persist.Save(ctx, s)
		m.scheduleRefresh(s)
		if event == backend.EventTokenRefreshed {
			m.record(ctx, audit.TokenRefreshed, s.UserID(), nil)
		}

	default:
		if s == nil {
			m.mu.Lock()
			m.clearLocked()
			m.dataLoaded = true
			m.setStateLocked(StateInvalid)
			m.mu.Unlock()
			m.notify()
			return
		}
		if event == backend.EventSignedIn {
			m.record(ctx, audit.SignIn, s.UserID(), nil)
		}
		m.accept(ctx, s)
	}
}

// accept 保存有效会话并加载用户数据，可重复调用
func (m *Manager) accept(ctx context.Context, s *backend.Session) {
	if !m.isMounted() {
		return
	}
	m.setSession(s, StateValid)
	m.persist.Save(ctx, s)
	m.LoadUserData(ctx, s.User)
	m.scheduleRefresh(s)
	m.heartbeat.Start()
}

func (m *Manager) fetchSession(ctx context.Context) (*backend.Session, error) {
	r := scheduler.Retrier{
		Attempts: m.config.RetryAttempts,
		Strategy: scheduler.NewExponentialBackoff(m.config.RetryBaseDelay, m.config.RetryMaxDelay, 2),
		Clock:    m.clock,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			m.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("session fetch failed")
		},
	}
	var s *backend.Session
	err := r.Do(ctx, func(ctx context.Context, _ int) error {
		got, err := m.auth.GetSession(ctx)
		if err != nil {
			return errors.RetryableFetch(err)
		}
		s = got
		return nil
	})
	return s, err
}

// restore 用持久化副本兜底，后端拒绝时仍然沿用副本
func (m *Manager) restore(ctx context.Context) *backend.Session {
	stored := m.persist.Get(ctx)
	if stored == nil {
		return nil
	}
	fresh := m.persist.IsFresh(ctx)
	s, err := m.auth.SetSession(ctx, stored)
	if err != nil {
		m.logger.Warn().Err(err).Bool("fresh", fresh).Msg("backend rejected persisted session, using it as is")
		s = stored
	}
	m.record(ctx, audit.SessionRestored, s.UserID(), map[string]string{"fresh": strconv.FormatBool(fresh)})
	return s
}

// refresh 刷新失败时会话失效，但不清除持久化副本
func (m *Manager) refresh(ctx context.Context) (*backend.Session, error) {
	s, err := m.auth.RefreshSession(ctx)
	if err == nil && s == nil {
		err = errors.ErrUnauthenticated
	}
	if err != nil {
		m.logger.Warn().Err(err).Msg("token refresh failed")
		if !m.isMounted() {
			return nil, err
		}
		m.mu.Lock()
		userID := ""
		if m.session != nil {
			userID = m.session.UserID()
		}
		m.clearLocked()
		m.dataLoaded = true
		m.stopRefreshLocked()
		m.setStateLocked(StateInvalid)
		m.mu.Unlock()
		m.heartbeat.Stop()
		m.notify()
		m.record(ctx, audit.SessionExpired, userID, map[string]string{"error": err.Error()})
		return nil, errors.Unauthenticated("session refresh failed").WithCause(err)
	}
	if !m.isMounted() {
		return s, nil
	}
	m.setSession(s, StateValid)
	m.persist.Save(ctx, s)
	m.scheduleRefresh(s)
	return s, nil
}

// scheduleRefresh 过期时间不变时保留现有定时器，否则先取消旧定时器再设置新的
func (m *Manager) scheduleRefresh(s *backend.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted || s == nil {
		return
	}
	if m.refreshTimer != nil && m.refreshAt == s.ExpiresAt {
		return
	}
	m.stopRefreshLocked()
	if s.ExpiresAt == 0 {
		return
	}
	remaining := s.Expiry().Sub(m.clock.Now())
	delay := remaining - m.config.RefreshLead
	// 有效期短于提前量时至少等待 floor，但不晚于过期时刻
	if floor := max(m.config.RefreshLead/2, time.Second); delay < floor {
		delay = max(min(floor, remaining), 0)
	}
	m.refreshAt = s.ExpiresAt
	m.refreshTimer = m.clock.AfterFunc(delay, m.onRefreshTimer)
	m.logger.Debug().Dur("in", delay).Msg("token refresh scheduled")
}

func (m *Manager) onRefreshTimer() {
	m.mu.Lock()
	if !m.mounted || m.session == nil {
		m.mu.Unlock()
		return
	}
	m.refreshTimer = nil
	m.refreshAt = 0
	m.setStateLocked(StateRefreshing)
	ctx := m.ctx
	m.mu.Unlock()
	m.notify()

	if _, err := m.refresh(ctx); err != nil {
		m.logger.Info().Err(err).Msg("scheduled refresh failed, session invalidated")
	}
}

func (m *Manager) loadUserData(ctx context.Context, u backend.User) {
	m.mu.Lock()
	if m.loadedUserID != u.ID {
		m.profile, m.userProfile, m.agent, m.company = nil, nil, nil, nil
	}
	m.dataLoaded = false
	m.mu.Unlock()

	l := m.logger.With().Str("user_id", u.ID).Logger()

	profile, err := backend.MaybeSingle[model.Profile](ctx, m.rows,
		backend.From(model.TableProfiles).Eq("user_id", u.ID))
	if err != nil {
		l.Warn().Err(err).Msg("failed to load profile")
	}

	var (
		agent   *model.Agent
		company *model.Company
	)
	if profile != nil && profile.CompanyID != "" {
		if agent, err = backend.MaybeSingle[model.Agent](ctx, m.rows,
			backend.From(model.TableAgents).Eq("user_uid", u.ID)); err != nil {
			l.Warn().Err(err).Msg("failed to load agent")
		}
		if company, err = backend.MaybeSingle[model.Company](ctx, m.rows,
			backend.From(model.TableCompanies).Eq("id", profile.CompanyID)); err != nil {
			l.Warn().Err(err).Msg("failed to load company")
		}
	}

	m.mu.Lock()
	// 加载期间已登出或切换用户时丢弃结果
	if !m.mounted || m.session == nil || m.session.UserID() != u.ID {
		m.mu.Unlock()
		return
	}
	m.profile, m.agent, m.company = profile, agent, company
	m.userProfile = nil
	if profile != nil {
		up := model.NewUserProfile(u.ID, u.Email, *profile)
		m.userProfile = &up
	}
	m.preset = m.resolver.Resolve(u.ID, u.Email)
	m.loadedUserID = u.ID
	m.dataLoaded = true
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) loaded(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dataLoaded && m.loadedUserID == userID
}

func (m *Manager) markLoaded() {
	m.mu.Lock()
	m.dataLoaded = true
	m.mu.Unlock()
}

// sweep 删除持久层中托管后端客户端库留下的键
func (m *Manager) sweep(ctx context.Context) {
	durable := m.persist.Durable()
	keys, err := durable.Keys(ctx, "")
	if err != nil {
		m.logger.Debug().Err(err).Msg("sweep: list keys failed")
		return
	}
	var stale []string
	for _, k := range keys {
		if m.residual(k) {
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := durable.Delete(ctx, stale...); err != nil {
		m.logger.Debug().Err(err).Msg("sweep: delete failed")
		return
	}
	m.logger.Debug().Strs("keys", stale).Msg("swept residual keys")
}

func (m *Manager) residual(key string) bool {
	for _, p := range m.config.SweepPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	for _, s := range m.config.SweepContains {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func (m *Manager) setSession(s *backend.Session, state State) {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	// 切换用户时旧用户的档案不能出现在新会话的快照里
	if m.session != nil && m.session.UserID() != s.UserID() {
		m.loadedUserID, m.dataLoaded = "", false
		m.profile, m.userProfile, m.agent, m.company = nil, nil, nil, nil
		m.preset = preset.Default
	}
	m.session = clonePtr(s)
	m.user = clonePtr(&s.User)
	m.setStateLocked(state)
	m.mu.Unlock()
	m.notify()
}

// clearLocked 清除会话与用户数据，调用方持锁
func (m *Manager) clearLocked() {
	m.session, m.user = nil, nil
	m.profile, m.userProfile, m.agent, m.company = nil, nil, nil, nil
	m.preset = preset.Default
	m.loadedUserID = ""
}

func (m *Manager) stopRefreshLocked() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	m.refreshAt = 0
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug().Stringer("from", m.state).Stringer("to", s).Msg("session state")
	m.state = s
	metrics.SessionTransitions.WithLabelValues(s.String()).Inc()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:       m.state,
		Session:     clonePtr(m.session),
		User:        clonePtr(m.user),
		Profile:     clonePtr(m.profile),
		UserProfile: clonePtr(m.userProfile),
		Agent:       clonePtr(m.agent),
		Company:     clonePtr(m.company),
		Preset:      m.preset,
		DataLoaded:  m.dataLoaded,
	}
}

func (m *Manager) notify() {
	m.mu.RLock()
	if !m.mounted || len(m.watchers) == 0 {
		m.mu.RUnlock()
		return
	}
	snap := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (m *Manager) isMounted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mounted
}

func (m *Manager) baseContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

func (m *Manager) record(ctx context.Context, t audit.Type, userID string, fields map[string]string) {
	err := m.sink.Record(ctx, audit.Event{Type: t, UserID: userID, At: m.clock.Now(), Fields: fields})
	if err != nil {
		m.logger.Debug().Err(err).Str("event", string(t)).Msg("audit record failed")
	}
}
