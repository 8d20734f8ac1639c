package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/rentoso/backend"
	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/model"
)

type fakeServer struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (f *fakeServer) record(r *http.Request) string {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(data))
	return string(data)
}

func (f *fakeServer) last() (*http.Request, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body string)) (*Client, *fakeServer) {
	t.Helper()
	fs := &fakeServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := fs.record(r)
		handler(w, r, body)
	}))
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	c, err := New(&Config{URL: srv.URL + "/", AnonKey: "anon"}, WithClock(clock))
	require.NoError(t, err)
	return c, fs
}

func tokenResponse(w http.ResponseWriter, access string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": "refresh-" + access,
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          map[string]any{"id": "u1", "email": "ana@rentoso.cl"},
	})
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(&Config{URL: "http://localhost"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSignInRefreshSignOut(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request, body string) {
		switch {
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
			if strings.Contains(body, `"password":"bad"`) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error_description":"Invalid login credentials"}`))
				return
			}
			tokenResponse(w, "a1")
		case r.URL.Path == "/auth/v1/token":
			tokenResponse(w, "a2")
		case r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()
	auth := c.Backend().Auth

	var events []backend.Event
	auth.OnAuthStateChange(func(e backend.Event, _ *backend.Session) { events = append(events, e) })

	_, err := auth.SignInWithPassword(ctx, "ana@rentoso.cl", "bad")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	s, err := auth.SignInWithPassword(ctx, "ana@rentoso.cl", "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID())
	// 响应没有 expires_at 时按 expires_in 推算
	assert.Equal(t, c.clock.Now().Add(time.Hour).Unix(), s.ExpiresAt)

	got, err := auth.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AccessToken)

	s, err = auth.RefreshSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", s.AccessToken)
	_, body := fs.last()
	assert.Contains(t, body, `"refresh_token":"refresh-a1"`)

	require.NoError(t, auth.SignOut(ctx))
	req, _ := fs.last()
	assert.Equal(t, "global", req.URL.Query().Get("scope"))
	assert.Equal(t, "Bearer a2", req.Header.Get("Authorization"))

	got, err = auth.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, []backend.Event{backend.EventSignedIn, backend.EventTokenRefreshed, backend.EventSignedOut}, events)
}

func TestSelectBuildsPostgrestQuery(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		_, _ = w.Write([]byte(`[{"id":"p1","empresa_id":"e1","titulo":"Depto","precio":100}]`))
	})

	props, err := backend.List[model.Property](context.Background(), c.Backend().Rows,
		backend.From(model.TableProperties).Select("id,empresa_id,titulo,precio").Eq("empresa_id", "e1").
			In("estado", "Disponible", "Reservada").Order("updated_at", true).WithLimit(20))
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "Depto", props[0].Title)

	req, _ := fs.last()
	assert.Equal(t, "/rest/v1/propiedad", req.URL.Path)
	q := req.URL.Query()
	assert.Equal(t, "eq.e1", q.Get("empresa_id"))
	assert.Equal(t, "in.(Disponible,Reservada)", q.Get("estado"))
	assert.Equal(t, "updated_at.desc", q.Get("order"))
	assert.Equal(t, "20", q.Get("limit"))
	assert.Equal(t, "anon", req.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon", req.Header.Get("Authorization"))
}

func TestSelectMapsStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"JWT expired"}`))
	})
	var rows []model.Profile
	err := c.Backend().Rows.Select(context.Background(), backend.From(model.TableProfiles), &rows)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestUpdateAndFunctions(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		switch r.URL.Path {
		case "/rest/v1/propiedad":
			_, _ = w.Write([]byte(`[{"id":"p1","estado":"Arrendada"}]`))
		case "/functions/v1/send-invitation-email":
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	})
	ctx := context.Background()

	var out []model.Property
	require.NoError(t, c.Backend().Rows.Update(ctx, backend.From(model.TableProperties).Eq("id", "p1"),
		map[string]any{"estado": "Arrendada"}, &out))
	req, body := fs.last()
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "return=representation", req.Header.Get("Prefer"))
	assert.JSONEq(t, `{"estado":"Arrendada"}`, body)
	assert.Equal(t, "Arrendada", out[0].Status)

	var res struct {
		Success bool `json:"success"`
	}
	require.NoError(t, c.Backend().Functions.Invoke(ctx, "send-invitation-email", map[string]string{"email": "x@y.cl"}, &res))
	assert.True(t, res.Success)
}

func TestStorage(t *testing.T) {
	c, fs := newTestClient(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		_, _ = w.Write([]byte(`{}`))
	})
	st := c.Backend().Storage
	require.NoError(t, st.Upload(context.Background(), "propiedad-imagenes", "p1/foto 1.png", strings.NewReader("png"), 3, "image/png"))
	req, body := fs.last()
	assert.Equal(t, "/storage/v1/object/propiedad-imagenes/p1/foto 1.png", req.URL.Path)
	assert.Equal(t, "image/png", req.Header.Get("Content-Type"))
	assert.Equal(t, "png", body)

	assert.Equal(t, c.config.URL+"/storage/v1/object/public/propiedad-imagenes/p1/foto%201.png", st.PublicURL("propiedad-imagenes", "p1/foto 1.png"))
}
