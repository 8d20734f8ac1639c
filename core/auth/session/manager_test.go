package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/rentoso/audit"
	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/backend/mock"
	"github.com/kochabx/rentoso/core/auth/jwt"
	rerrors "github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/model"
	"github.com/kochabx/rentoso/preset"
)

var errNetwork = errors.New("network unreachable")

func signInDirect(t *testing.T, f *fixture, p preset.Preset) *backend.Session {
	t.Helper()
	s, err := f.backend.Auth().SignInWithPassword(context.Background(), mock.DemoFor(p).Email, mock.DemoPassword)
	require.NoError(t, err)
	return s
}

func TestInitWithoutSession(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	m := f.manager(t)

	require.NoError(t, m.Init(context.Background()))
	snap := m.Snapshot()
	assert.Equal(t, StateInvalid, snap.State)
	assert.True(t, snap.DataLoaded)
	assert.Nil(t, snap.Session)
	assert.Equal(t, 1, f.backend.Auth().Listeners())
}

func TestInitIsIdempotent(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	m := f.manager(t)

	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, 1, f.backend.Auth().Listeners())
}

func TestInitLoadsExistingSession(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	s := signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)

	require.NoError(t, m.Init(context.Background()))
	snap := m.Snapshot()
	require.Equal(t, StateValid, snap.State)
	assert.Equal(t, s.AccessToken, snap.Session.AccessToken)
	assert.True(t, snap.DataLoaded)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "empresa-rentoso", snap.CompanyID())
	require.NotNil(t, snap.UserProfile)
	assert.Equal(t, "Paula", snap.UserProfile.FirstName)
	require.NotNil(t, snap.Agent)
	require.NotNil(t, snap.Company)
	assert.Equal(t, preset.Inmobiliaria, snap.Preset)

	assert.NotNil(t, f.persist.Get(context.Background()))
}

func TestInitRetriesWithBackoff(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	signInDirect(t, f, preset.Inmobiliaria)
	f.backend.Faults().FailGetSession(2, errNetwork)
	m := f.manager(t)
	start := f.clock.Now()

	done := make(chan error, 1)
	go func() { done <- m.Init(context.Background()) }()

	f.clock.BlockUntil(1)
	assert.Equal(t, StateLoading, m.State())
	f.clock.Advance(time.Second)
	f.clock.BlockUntil(1)
	f.clock.Advance(2 * time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("init did not finish")
	}
	assert.Equal(t, StateValid, m.State())
	assert.Equal(t, 3*time.Second, f.clock.Since(start))
}

func TestInitFallsBackToPersistedSession(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	s := signInDirect(t, f, preset.Inmobiliaria)
	f.persist.Save(context.Background(), s)
	f.backend.Faults().FailGetSession(-1, errNetwork)
	m := f.manager(t)

	done := make(chan error, 1)
	go func() { done <- m.Init(context.Background()) }()
	f.clock.BlockUntil(1)
	f.clock.Advance(time.Second)
	f.clock.BlockUntil(1)
	f.clock.Advance(2 * time.Second)
	require.NoError(t, <-done)

	snap := m.Snapshot()
	require.Equal(t, StateValid, snap.State)
	assert.Equal(t, s.UserID(), snap.Session.UserID())
	assert.Contains(t, f.sink.types(), audit.SessionRestored)
}

func TestInitGivesUpWithoutPersistedSession(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	f.backend.Faults().FailGetSession(-1, errNetwork)
	m := f.manager(t, WithConfig(Config{RetryAttempts: 1}))

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, StateInvalid, m.State())
	assert.True(t, m.Snapshot().DataLoaded)
}

func TestInitRefreshesExpiredSession(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	old := signInDirect(t, f, preset.Inmobiliaria)
	f.backend.Auth().ExpireSession()
	m := f.manager(t)

	require.NoError(t, m.Init(context.Background()))
	snap := m.Snapshot()
	require.Equal(t, StateValid, snap.State)
	assert.NotEqual(t, old.AccessToken, snap.Session.AccessToken)
	assert.False(t, snap.Session.Expired(f.clock.Now()))
}

func TestInitExpiredSessionRefreshFails(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	s := signInDirect(t, f, preset.Inmobiliaria)
	f.persist.Save(context.Background(), s)
	f.backend.Auth().ExpireSession()
	f.backend.Faults().FailRefresh(1, errNetwork)
	m := f.manager(t)

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, StateInvalid, m.State())
	assert.Contains(t, f.sink.types(), audit.SessionExpired)
	// 刷新失败不删除持久化副本
	assert.NotNil(t, f.persist.Get(context.Background()))
}

func TestUnsolicitedSignedOutIsIgnored(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)
	require.NoError(t, m.Init(context.Background()))
	before := m.Snapshot()

	f.backend.Auth().Emit(backend.EventSignedOut, nil)

	after := m.Snapshot()
	assert.Equal(t, StateValid, after.State)
	assert.Equal(t, before.Session.AccessToken, after.Session.AccessToken)
	assert.NotNil(t, after.Profile)
	assert.NotNil(t, f.persist.Get(context.Background()))
}

func TestSignInAndSignOut(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	demo := mock.DemoFor(preset.Inmobiliaria)
	s, err := m.SignIn(ctx, demo.Email, mock.DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, demo.UserID, s.UserID())

	snap := m.Snapshot()
	require.Equal(t, StateValid, snap.State)
	require.NotNil(t, snap.Profile)
	require.NotNil(t, snap.Agent)
	require.NotNil(t, snap.Company)
	assert.Equal(t, 1, f.backend.Rows().Reads(model.TableProfiles))

	require.NoError(t, f.durable.Set(ctx, "sb-project-auth-token", []byte("x")))
	require.NoError(t, f.durable.Set(ctx, "my-supabase-cache", []byte("x")))
	require.NoError(t, f.durable.Set(ctx, "theme", []byte("dark")))

	require.NoError(t, m.SignOut(ctx))

	snap = m.Snapshot()
	assert.Equal(t, StateInvalid, snap.State)
	assert.Nil(t, snap.Session)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.Nil(t, snap.Agent)
	assert.Nil(t, snap.Company)
	assert.Nil(t, f.persist.Get(ctx))

	keys, err := f.durable.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"theme"}, keys)

	got, err := f.backend.Auth().GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Contains(t, f.sink.types(), audit.SignIn)
	assert.Contains(t, f.sink.types(), audit.SignOut)
}

func TestSignOutToleratesBackendFailure(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	f.backend.Faults().FailSignOut(1, errNetwork)
	require.NoError(t, m.SignOut(ctx))
	assert.Equal(t, StateInvalid, m.State())
	assert.Nil(t, f.persist.Get(ctx))

	// 之后收到的登出事件没有显式标记，不再处理
	m.mu.RLock()
	assert.False(t, m.explicitSignOut)
	m.mu.RUnlock()
}

func TestSignInRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	m := f.manager(t)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "not-an-email", "x")
	assert.ErrorIs(t, err, rerrors.ErrInvalidInput)

	_, err = m.SignIn(ctx, mock.DemoFor(preset.Inmobiliaria).Email, "wrong")
	assert.ErrorIs(t, err, rerrors.ErrInvalidInput)
	assert.Nil(t, m.Session())
}

func TestSignUpCreatesProfile(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	s, err := m.SignUp(ctx, backend.SignUpParams{Email: "nuevo@rentoso.cl", Password: "secreto1", FullName: "Nuevo Agente"})
	require.NoError(t, err)
	require.NotNil(t, s)

	snap := m.Snapshot()
	assert.Equal(t, StateValid, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Nuevo Agente", snap.Profile.FullName)
	assert.True(t, snap.DataLoaded)

	_, err = m.SignUp(ctx, backend.SignUpParams{Email: "x@rentoso.cl", Password: "123"})
	assert.ErrorIs(t, err, rerrors.ErrInvalidInput)
}

func TestProfileLoadedOncePerUser(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	s := signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)
	m.mounted = true
	m.setSession(s, StateValid)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.LoadUserData(context.Background(), s.User)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.backend.Rows().Reads(model.TableProfiles))
	assert.True(t, m.Snapshot().DataLoaded)

	m.LoadUserData(context.Background(), s.User)
	assert.Equal(t, 1, f.backend.Rows().Reads(model.TableProfiles))
}

func TestLoadUserDataToleratesQueryErrors(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	signInDirect(t, f, preset.Inmobiliaria)
	f.backend.Faults().FailSelect(model.TableCompanies, 1, errNetwork)
	m := f.manager(t)

	require.NoError(t, m.Init(context.Background()))
	snap := m.Snapshot()
	assert.True(t, snap.DataLoaded)
	assert.NotNil(t, snap.Profile)
	assert.NotNil(t, snap.Agent)
	assert.Nil(t, snap.Company)
}

func TestTokenRefreshedDoesNotReloadProfile(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))
	reads := f.backend.Rows().Reads(model.TableProfiles)

	f.clock.Advance(time.Minute)
	refreshed, err := f.backend.Auth().RefreshSession(ctx)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, refreshed.AccessToken, snap.Session.AccessToken)
	assert.Equal(t, reads, f.backend.Rows().Reads(model.TableProfiles))
	assert.Equal(t, refreshed.AccessToken, f.persist.Get(ctx).AccessToken)
	assert.Contains(t, f.sink.types(), audit.TokenRefreshed)
}

func TestScheduledRefreshFires(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	s := signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)
	require.NoError(t, m.Init(context.Background()))

	// 一小时有效期，提前五分钟刷新
	f.clock.Advance(54 * time.Minute)
	assert.Equal(t, s.AccessToken, m.Session().AccessToken)
	f.clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		cur := m.Session()
		return cur != nil && cur.AccessToken != s.AccessToken && m.State() == StateValid
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShortLivedTokenRefreshIsDelayed(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	b, err := mock.NewSeeded(&jwt.Config{Secret: "test", AccessTokenTTL: 3 * time.Minute},
		preset.Inmobiliaria, mock.WithClock(f.clock))
	require.NoError(t, err)
	f.backend = b
	s := signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)
	require.NoError(t, m.Init(context.Background()))

	refreshes := func() int {
		n := 0
		for _, typ := range f.sink.types() {
			if typ == audit.TokenRefreshed {
				n++
			}
		}
		return n
	}

	// 有效期三分钟短于五分钟提前量，至少等待提前量的一半
	f.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, refreshes())
	assert.Equal(t, s.AccessToken, m.Session().AccessToken)

	f.clock.Advance(90 * time.Second)
	require.Eventually(t, func() bool {
		cur := m.Session()
		return cur != nil && cur.AccessToken != s.AccessToken && m.State() == StateValid
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, refreshes())

	// 新令牌同样短命，下一次刷新仍然按 floor 排期
	f.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, refreshes())
}

func TestScheduledRefreshFailureInvalidates(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)
	require.NoError(t, m.Init(context.Background()))

	f.backend.Faults().FailRefresh(1, errNetwork)
	f.clock.Advance(55 * time.Minute)

	require.Eventually(t, func() bool { return m.State() == StateInvalid }, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, m.Session())
	assert.Contains(t, f.sink.types(), audit.SessionExpired)
	assert.NotNil(t, f.persist.Get(context.Background()))
}

func TestCheckSession(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	_, err := m.CheckSession(ctx)
	assert.ErrorIs(t, err, rerrors.ErrUnauthenticated)

	signInDirect(t, f, preset.Inmobiliaria)
	s, err := m.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateValid, m.State())
	assert.Equal(t, s.AccessToken, m.Session().AccessToken)

	f.backend.Faults().FailGetSession(1, errNetwork)
	_, err = m.CheckSession(ctx)
	assert.ErrorIs(t, err, rerrors.ErrRetryableFetch)
	assert.True(t, m.Snapshot().DataLoaded)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	m := f.manager(t, WithConfig(Config{ResetRedirect: "https://app.rentoso.cl/reset-password"}))
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	assert.ErrorIs(t, m.ResetPassword(ctx, "nope"), rerrors.ErrInvalidInput)
	require.NoError(t, m.ResetPassword(ctx, mock.DemoFor(preset.Inmobiliaria).Email))
	assert.Len(t, f.backend.Auth().ResetRequests(), 1)

	signInDirect(t, f, preset.Inmobiliaria)
	assert.ErrorIs(t, m.UpdatePassword(ctx, "123"), rerrors.ErrInvalidInput)
	require.NoError(t, m.UpdatePassword(ctx, "nuevaClave1"))

	_, err := f.backend.Auth().SignInWithPassword(ctx, mock.DemoFor(preset.Inmobiliaria).Email, "nuevaClave1")
	assert.NoError(t, err)
}

func TestCoworkingPresetResolved(t *testing.T) {
	f := newFixture(t, preset.Coworking)
	signInDirect(t, f, preset.Coworking)
	m := f.manager(t)

	require.NoError(t, m.Init(context.Background()))
	snap := m.Snapshot()
	assert.Equal(t, preset.Coworking, snap.Preset)
	assert.Equal(t, "empresa-nubecowork", snap.CompanyID())
}

func TestWatchAndDispose(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	signInDirect(t, f, preset.Inmobiliaria)
	m := f.manager(t)

	var (
		mu     sync.Mutex
		states []State
	)
	cancel := m.Watch(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	require.NoError(t, m.Init(context.Background()))
	cancel()

	mu.Lock()
	assert.Contains(t, states, StateLoading)
	assert.Contains(t, states, StateValid)
	mu.Unlock()

	m.Dispose()
	assert.Equal(t, 0, f.backend.Auth().Listeners())

	// 卸载后的事件与定时器都不再修改状态
	f.backend.Auth().Emit(backend.EventSignedIn, nil)
	f.clock.Advance(time.Hour)
	assert.Equal(t, StateValid, m.State())
	assert.NotNil(t, m.Session())
	m.Dispose()
}

func TestSwitchingUsersReloadsProfile(t *testing.T) {
	f := newFixture(t, preset.Inmobiliaria)
	require.NoError(t, f.backend.Seed(preset.Coworking))
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	a := mock.DemoFor(preset.Inmobiliaria)
	b := mock.DemoFor(preset.Coworking)

	var (
		mu    sync.Mutex
		mixed []string
	)
	m.Watch(func(s Snapshot) {
		if s.Session == nil || s.Profile == nil {
			return
		}
		if s.Profile.UserID != s.Session.UserID() {
			mu.Lock()
			mixed = append(mixed, s.Session.UserID()+"/"+s.Profile.UserID)
			mu.Unlock()
		}
	})

	_, err := m.SignIn(ctx, a.Email, mock.DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Rows().Reads(model.TableProfiles))
	require.NotNil(t, m.Snapshot().Profile)
	assert.Equal(t, a.UserID, m.Snapshot().Profile.UserID)

	require.NoError(t, m.SignOut(ctx))
	assert.Nil(t, m.Snapshot().Profile)

	_, err = m.SignIn(ctx, b.Email, mock.DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, 2, f.backend.Rows().Reads(model.TableProfiles))
	snap := m.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, b.UserID, snap.Profile.UserID)
	assert.Equal(t, b.CompanyID, snap.CompanyID())
	assert.Equal(t, preset.Coworking, snap.Preset)

	// 不登出直接切回 A
	_, err = m.SignIn(ctx, a.Email, mock.DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, 3, f.backend.Rows().Reads(model.TableProfiles))
	snap = m.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, a.UserID, snap.Profile.UserID)
	assert.Equal(t, a.CompanyID, snap.CompanyID())

	mu.Lock()
	assert.Empty(t, mixed)
	mu.Unlock()
}
