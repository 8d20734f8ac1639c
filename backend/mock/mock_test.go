package mock

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/core/auth/jwt"
	rerrors "github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/model"
	"github.com/kochabx/rentoso/preset"
)

func newTestBackend(t *testing.T) (*Backend, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	b, err := NewSeeded(&jwt.Config{Secret: "test"}, preset.Inmobiliaria, WithClock(clock))
	require.NoError(t, err)
	return b, clock
}

func TestSignInEmitsAndSessionRoundTrip(t *testing.T) {
	b, clock := newTestBackend(t)
	ctx := context.Background()
	auth := b.Client().Auth

	var events []backend.Event
	sub := auth.OnAuthStateChange(func(e backend.Event, _ *backend.Session) { events = append(events, e) })
	defer sub.Unsubscribe()

	_, err := auth.SignInWithPassword(ctx, "demo@rentoso.cl", "wrong")
	assert.ErrorIs(t, err, rerrors.ErrInvalidInput)

	s, err := auth.SignInWithPassword(ctx, "DEMO@rentoso.cl", DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, "demo-uid", s.UserID())
	assert.Equal(t, clock.Now().Add(time.Hour).Unix(), s.ExpiresAt)

	got, err := auth.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.AccessToken, got.AccessToken)

	u, err := auth.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo@rentoso.cl", u.Email)

	clock.Advance(time.Minute)
	refreshed, err := auth.RefreshSession(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, s.AccessToken, refreshed.AccessToken)

	require.NoError(t, auth.SignOut(ctx))
	got, err = auth.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// 登出后旧的刷新令牌失效
	_, err = auth.SetSession(ctx, &backend.Session{AccessToken: "expired", RefreshToken: refreshed.RefreshToken})
	assert.ErrorIs(t, err, rerrors.ErrUnauthenticated)

	assert.Equal(t, []backend.Event{backend.EventSignedIn, backend.EventTokenRefreshed, backend.EventSignedOut}, events)
}

func TestSetSessionRefreshesExpiredAccessToken(t *testing.T) {
	b, clock := newTestBackend(t)
	ctx := context.Background()
	auth := b.Auth()

	s, err := auth.SignInWithPassword(ctx, "demo@rentoso.cl", DemoPassword)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	restored, err := auth.SetSession(ctx, s)
	require.NoError(t, err)
	assert.Greater(t, restored.ExpiresAt, clock.Now().Unix())
}

func TestSignUpCreatesProfile(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	s, err := b.Auth().SignUp(ctx, backend.SignUpParams{
		Email: "nuevo@rentoso.cl", Password: "secret1", FullName: "Ana María López", CompanyName: "ACME",
	})
	require.NoError(t, err)
	require.NotNil(t, s)

	p, err := backend.MaybeSingle[model.Profile](ctx, b.Rows(), backend.From(model.TableProfiles).Eq("user_id", s.UserID()))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Ana María López", p.FullName)

	_, err = b.Auth().SignUp(ctx, backend.SignUpParams{Email: "nuevo@rentoso.cl", Password: "secret1"})
	assert.ErrorIs(t, err, rerrors.ErrInvalidInput)

	b.Auth().AutoConfirm = false
	s, err = b.Auth().SignUp(ctx, backend.SignUpParams{Email: "otro@rentoso.cl", Password: "secret1"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRowsSelectFilters(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	props, err := backend.List[model.Property](ctx, b.Rows(), backend.From(model.TableProperties).Eq("empresa_id", "empresa-rentoso").Order("precio", true))
	require.NoError(t, err)
	require.Len(t, props, 4)
	assert.Equal(t, 900000.0, props[0].Price)

	none, err := backend.List[model.Property](ctx, b.Rows(), backend.From(model.TableProperties).Eq("empresa_id", "otra"))
	require.NoError(t, err)
	assert.Empty(t, none)

	var updated []model.Property
	require.NoError(t, b.Rows().Update(ctx, backend.From(model.TableProperties).Eq("id", props[0].ID), map[string]any{"estado": model.PropertyRented}, &updated))
	require.Len(t, updated, 1)
	assert.Equal(t, model.PropertyRented, updated[0].Status)
	assert.Equal(t, 2, b.Rows().Reads(model.TableProperties))
}

func TestFaults(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()
	boom := errors.New("network down")

	b.Faults().FailGetSession(2, boom)
	_, err := b.Auth().GetSession(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = b.Auth().GetSession(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = b.Auth().GetSession(ctx)
	assert.NoError(t, err)

	b.Faults().FailSelect(model.TableProfiles, -1, boom)
	for range 3 {
		_, err = backend.List[model.Profile](ctx, b.Rows(), backend.From(model.TableProfiles))
		assert.ErrorIs(t, err, boom)
	}
	b.Faults().Reset()
	_, err = backend.List[model.Profile](ctx, b.Rows(), backend.From(model.TableProfiles))
	assert.NoError(t, err)
}

func TestStorageAndFunctions(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	data := []byte("png")
	require.NoError(t, b.Storage().Upload(ctx, "propiedad-imagenes", "p1/a.png", bytes.NewReader(data), int64(len(data)), "image/png"))
	got, ct, ok := b.Storage().Object("propiedad-imagenes", "p1/a.png")
	require.True(t, ok)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "http://localhost:54321/storage/v1/object/public/propiedad-imagenes/p1/a.png", b.Storage().PublicURL("propiedad-imagenes", "p1/a.png"))

	var out struct {
		Success bool `json:"success"`
	}
	require.NoError(t, b.Functions().Invoke(ctx, "send-invitation-email", map[string]string{"email": "x@y.cl"}, &out))
	assert.True(t, out.Success)
	assert.ErrorIs(t, b.Functions().Invoke(ctx, "missing", nil, nil), rerrors.ErrNotFound)
	assert.Len(t, b.Functions().Calls(), 2)
}
