package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/rentoso/store"
	"github.com/kochabx/rentoso/store/memory"
)

type brokenKV struct{ store.KV }

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("quota exceeded") }
func (brokenKV) Set(context.Context, string, []byte) error   { return errors.New("quota exceeded") }

func TestSlotPrefersPrimary(t *testing.T) {
	ctx := context.Background()
	primary, fallback := memory.New(), memory.New()
	slot := (&store.Tiered{Primary: primary, Fallback: fallback}).Slot("active", "backup")

	require.NoError(t, slot.Set(ctx, []byte("v1")))
	require.NoError(t, fallback.Set(ctx, "backup", []byte("old")))

	v, src, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))
	assert.Equal(t, store.SourcePrimary, src)
}

func TestSlotFallbackBackfills(t *testing.T) {
	ctx := context.Background()
	primary, fallback := memory.New(), memory.New()
	slot := (&store.Tiered{Primary: primary, Fallback: fallback}).Slot("active", "backup")
	require.NoError(t, fallback.Set(ctx, "backup", []byte("v2")))

	v, src, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))
	assert.Equal(t, store.SourceFallback, src)

	backfilled, err := primary.Get(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(backfilled))
}

func TestSlotPrimaryFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	fallback := memory.New()
	slot := (&store.Tiered{Primary: brokenKV{}, Fallback: fallback}).Slot("active", "backup")

	err := slot.Set(ctx, []byte("v3"))
	assert.Error(t, err)

	v, src, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v3", string(v))
	assert.Equal(t, store.SourceFallback, src)
}

func TestSlotClear(t *testing.T) {
	ctx := context.Background()
	primary, fallback := memory.New(), memory.New()
	slot := (&store.Tiered{Primary: primary, Fallback: fallback}).Slot("active", "backup")
	require.NoError(t, slot.Set(ctx, []byte("v")))

	require.NoError(t, slot.Clear(ctx))
	_, src, err := slot.Get(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, store.SourceNone, src)
}
