package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/rentoso/audit"
	"github.com/kochabx/rentoso/backend/mock"
	"github.com/kochabx/rentoso/core/auth/jwt"
	"github.com/kochabx/rentoso/preset"
	"github.com/kochabx/rentoso/store/memory"
)

var epoch = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Record(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []audit.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	backend *mock.Backend
	clock   clockwork.FakeClock
	short   *memory.Store
	durable *memory.Store
	persist *Persistence
	sink    *recorder
}

func newFixture(t *testing.T, p preset.Preset) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	b, err := mock.NewSeeded(&jwt.Config{Secret: "test"}, p, mock.WithClock(clock))
	require.NoError(t, err)
	f := &fixture{
		backend: b,
		clock:   clock,
		short:   memory.New(),
		durable: memory.New(),
		sink:    &recorder{},
	}
	f.persist = NewPersistence(f.short, f.durable, WithPersistenceClock(clock))
	return f
}

func (f *fixture) manager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithClock(f.clock), WithSink(f.sink)}, opts...)
	m, err := NewManager(f.backend.Client(), f.persist, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Dispose)
	return m
}
