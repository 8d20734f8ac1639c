package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/rentoso/store"
)

func TestStoreBasic(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "sb-abc-auth-token", []byte("x")))
	require.NoError(t, s.Set(ctx, "sb-abc-code-verifier", []byte("y")))
	require.NoError(t, s.Set(ctx, "rentoso_session_backup", []byte("z")))

	keys, err := s.Keys(ctx, "sb-")
	require.NoError(t, err)
	assert.Equal(t, []string{"sb-abc-auth-token", "sb-abc-code-verifier"}, keys)

	require.NoError(t, s.Delete(ctx, keys...))
	assert.Equal(t, 1, s.Len())
}

func TestStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := New()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'z'

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestStoreTTL(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(WithTTL(time.Minute), WithClock(clock))
	require.NoError(t, s.Set(ctx, "k", []byte("v")))

	clock.Advance(59 * time.Second)
	_, err := s.Get(ctx, "k")
	assert.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, s.Len())
}
