package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/store/memory"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (i item) Key() string { return i.ID }

type source struct {
	calls atomic.Int32
	mu    sync.Mutex
	items map[string][]item
	err   error
	gate  chan struct{}
}

func newSource() *source {
	return &source{items: map[string][]item{
		"e1": {{ID: "1", Name: "Casa Ñuñoa"}, {ID: "2", Name: "Depto Providencia"}},
		"e2": {{ID: "9", Name: "Oficina Las Condes"}},
	}}
}

func (s *source) fetch(_ context.Context, scope string) ([]item, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]item(nil), s.items[scope]...), nil
}

func (s *source) set(scope string, items ...item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[scope] = items
}

func newTestStore(src *source, clock clockwork.Clock, opts ...Option[item]) *Store[item] {
	opts = append([]Option[item]{WithClock[item](clock), WithTTL[item](5 * time.Minute)}, opts...)
	return New[item]("items", src.fetch, opts...)
}

func TestFetchServesFromCacheWithinTTL(t *testing.T) {
	src := newSource()
	clock := clockwork.NewFakeClock()
	s := newTestStore(src, clock)
	ctx := context.Background()

	first, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, first, 2)

	clock.Advance(4 * time.Minute)
	second, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestFetchAfterTTLRefetches(t *testing.T) {
	src := newSource()
	clock := clockwork.NewFakeClock()
	s := newTestStore(src, clock)
	ctx := context.Background()

	_, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)

	src.set("e1", item{ID: "3", Name: "Parcela Pirque"})
	clock.Advance(5 * time.Minute)
	items, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
	assert.Equal(t, []item{{ID: "3", Name: "Parcela Pirque"}}, items)
	assert.Equal(t, clock.Now(), *s.Snapshot().LastFetchedAt)
}

func TestFetchEmptyResultIsNotCached(t *testing.T) {
	src := newSource()
	s := newTestStore(src, clockwork.NewFakeClock())
	ctx := context.Background()

	for range 2 {
		items, err := s.Fetch(ctx, "vacía")
		require.NoError(t, err)
		assert.Empty(t, items)
	}
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestFetchDifferentScopeRefetches(t *testing.T) {
	src := newSource()
	s := newTestStore(src, clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	items, err := s.Fetch(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, "9", items[0].ID)
	assert.EqualValues(t, 2, src.calls.Load())
	assert.Equal(t, "e2", s.Snapshot().Scope)
}

func TestInvalidateBypassesTTL(t *testing.T) {
	src := newSource()
	s := newTestStore(src, clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	s.Invalidate(ctx)
	assert.Nil(t, s.Snapshot().LastFetchedAt)

	_, err = s.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestFetchErrorIsSurfaced(t *testing.T) {
	src := newSource()
	clock := clockwork.NewFakeClock()
	s := newTestStore(src, clock)
	ctx := context.Background()

	_, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	s.Invalidate(ctx)

	boom := errors.New("connection reset")
	src.err = boom
	_, err = s.Fetch(ctx, "e1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, rerrors.ErrFetchFailed)

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Len(t, snap.Items, 2)

	src.err = nil
	_, err = s.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.NoError(t, s.Snapshot().Err)
}

func TestConcurrentFetchesAreCollapsed(t *testing.T) {
	src := newSource()
	src.gate = make(chan struct{})
	s := newTestStore(src, clockwork.NewFakeClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := s.Fetch(ctx, "e1")
			assert.NoError(t, err)
			assert.Len(t, items, 2)
		}()
	}
	require.Eventually(t, func() bool { return s.Snapshot().Loading }, time.Second, time.Millisecond)
	close(src.gate)
	wg.Wait()
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestCancelledCallerDoesNotFailJoinedFetch(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context, _ string) ([]item, error) {
		calls.Add(1)
		<-gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []item{{ID: "1", Name: "Casa Ñuñoa"}}, nil
	}
	s := New[item]("items", fetch, WithClock[item](clockwork.NewFakeClock()))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Fetch(first, "e1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		items []item
		err   error
	}
	second := make(chan result, 1)
	go func() {
		items, err := s.Fetch(context.Background(), "e1")
		second <- result{items, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(gate)

	r := <-second
	require.NoError(t, r.err)
	assert.Len(t, r.items, 1)
	assert.EqualValues(t, 1, calls.Load())
	assert.NoError(t, s.Snapshot().Err)
}

func TestUpdateLocalKeepsTimestamp(t *testing.T) {
	src := newSource()
	clock := clockwork.NewFakeClock()
	s := newTestStore(src, clock)
	ctx := context.Background()

	_, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	before := *s.Snapshot().LastFetchedAt

	clock.Advance(time.Minute)
	assert.True(t, s.UpdateLocal(ctx, item{ID: "2", Name: "Depto Providencia (arrendado)"}))
	assert.False(t, s.UpdateLocal(ctx, item{ID: "404"}))

	snap := s.Snapshot()
	assert.Equal(t, before, *snap.LastFetchedAt)
	assert.Equal(t, "Depto Providencia (arrendado)", snap.Items[1].Name)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestAddAndRemove(t *testing.T) {
	src := newSource()
	s := newTestStore(src, clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)

	s.Add(ctx, item{ID: "7", Name: "Local Bellavista"})
	s.Add(ctx, item{ID: "1", Name: "Casa Ñuñoa renovada"})
	got, ok := s.Find("1")
	require.True(t, ok)
	assert.Equal(t, "Casa Ñuñoa renovada", got.Name)
	assert.Len(t, s.Snapshot().Items, 3)

	s.SetCurrent(&item{ID: "7"})
	assert.True(t, s.Remove(ctx, "7"))
	assert.False(t, s.Remove(ctx, "7"))
	assert.Nil(t, s.Snapshot().Current)
	_, ok = s.Find("7")
	assert.False(t, ok)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestFetchOne(t *testing.T) {
	src := newSource()
	one := func(_ context.Context, id string) (*item, error) {
		if id == "1" {
			return &item{ID: "1", Name: "Casa Ñuñoa"}, nil
		}
		return nil, nil
	}
	s := newTestStore(src, clockwork.NewFakeClock(), WithFetchOne[item](one))
	ctx := context.Background()

	got, err := s.FetchOne(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Casa Ñuñoa", got.Name)
	assert.Equal(t, "1", s.Snapshot().Current.ID)

	_, err = s.FetchOne(ctx, "2")
	assert.ErrorIs(t, err, rerrors.ErrNotFound)

	plain := newTestStore(src, clockwork.NewFakeClock())
	_, err = plain.FetchOne(ctx, "1")
	assert.ErrorIs(t, err, rerrors.ErrNotFound)
}

func TestPersistedCacheIsRestored(t *testing.T) {
	src := newSource()
	clock := clockwork.NewFakeClock()
	kv := memory.New()
	ctx := context.Background()

	first := newTestStore(src, clock, WithPersist[item](kv, "propiedad-storage"), WithVersion[item](2))
	_, err := first.Fetch(ctx, "e1")
	require.NoError(t, err)

	second := newTestStore(src, clock, WithPersist[item](kv, "propiedad-storage"), WithVersion[item](2))
	items, err := second.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestVersionBumpDiscardsPersistedCache(t *testing.T) {
	src := newSource()
	clock := clockwork.NewFakeClock()
	kv := memory.New()
	ctx := context.Background()

	stale, err := json.Marshal(blob[item]{
		Version:       1,
		Scope:         "e1",
		Items:         []item{{ID: "old", Name: "forma antigua"}},
		LastFetchedAt: ptr(clock.Now()),
	})
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "propiedad-storage", stale))

	s := newTestStore(src, clock, WithPersist[item](kv, "propiedad-storage"), WithVersion[item](2))
	items, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())
	assert.Len(t, items, 2)

	var saved blob[item]
	data, err := kv.Get(ctx, "propiedad-storage")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, 2, s.Snapshot().Version)
}

func TestReset(t *testing.T) {
	src := newSource()
	kv := memory.New()
	s := newTestStore(src, clockwork.NewFakeClock(), WithPersist[item](kv, "k"))
	ctx := context.Background()

	_, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	s.Reset(ctx)

	assert.Empty(t, s.Snapshot().Items)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, rerrors.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
