package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"persons/modules/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notice struct {
	Message string `json:"message"`
}

func TestMemoryKV_TakeClears(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(nil, 0)

	prev, err := kv.AtomicSet(ctx, "k", "v1")
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = kv.AtomicSet(ctx, "k", []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), prev)

	got, err := kv.AtomicTake(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	got, err = kv.AtomicTake(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryKV_Expiry(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	kv := NewMemoryKV(c, time.Minute)

	_, err := kv.AtomicSet(ctx, "k", "v")
	require.NoError(t, err)

	c.Advance(59 * time.Second)
	got, err := kv.AtomicGet(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	c.Advance(time.Second)
	got, err = kv.AtomicGet(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryKV_WriteSweepsExpired(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	kv := NewMemoryKV(c, time.Minute)

	for i := range 10_000 {
		_, err := kv.AtomicSet(ctx, fmt.Sprintf("sid-%d", i), "Person saved successfully.")
		require.NoError(t, err)
	}
	require.Len(t, kv.entries, 10_000)

	c.Advance(time.Hour)
	_, err := kv.AtomicSet(ctx, "fresh", "v")
	require.NoError(t, err)
	assert.Len(t, kv.entries, 1)

	got, err := kv.AtomicGet(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryKV_SweepKeepsLiveEntries(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	kv := NewMemoryKV(c, time.Minute)

	_, err := kv.AtomicSet(ctx, "old", "v")
	require.NoError(t, err)
	c.Advance(50 * time.Second)
	_, err = kv.AtomicSet(ctx, "young", "v")
	require.NoError(t, err)

	c.Advance(20 * time.Second)
	_, err = kv.AtomicSet(ctx, "newest", "v")
	require.NoError(t, err)

	assert.NotContains(t, kv.entries, "old")
	assert.Contains(t, kv.entries, "young")
	assert.Contains(t, kv.entries, "newest")
}

func TestMemoryKV_RejectsUnsupportedValues(t *testing.T) {
	_, err := NewMemoryKV(nil, 0).AtomicSet(context.Background(), "k", 42)
	assert.Error(t, err)
}

func TestJSONKV(t *testing.T) {
	ctx := context.Background()
	j := NewJSONKV[notice](NewMemoryKV(nil, 0))

	got, err := j.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)

	prev, err := j.Set(ctx, "sid", notice{Message: "first"})
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = j.Set(ctx, "sid", notice{Message: "second"})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "first", prev.Message)

	got, err = j.Take(ctx, "sid")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Message)

	got, err = j.Take(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJSONKV_DecodeError(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(nil, 0)
	_, err := kv.AtomicSet(ctx, "sid", "not json")
	require.NoError(t, err)

	_, err = NewJSONKV[notice](kv).Get(ctx, "sid")
	assert.Error(t, err)
}
