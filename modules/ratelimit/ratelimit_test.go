package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"persons/modules/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemCounter() *memCounter { return &memCounter{counts: map[string]int64{}} }

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounter) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func windowStart() time.Time {
	return time.Unix(0, 0).UTC().Add(1000 * time.Minute)
}

func TestSlidingWindow_RejectsBeyondLimit(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixedClock(windowStart())
	limiter := SlidingWindowFactory(c, newMemCounter(), "test")(3, time.Minute)

	for i := range 3 {
		res, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.EqualValues(t, 2-i, res.Remaining)
		assert.EqualValues(t, 3, res.Limit)
		assert.Zero(t, res.RetryAfter)
	}

	res, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter)

	res, err = limiter.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys are independent")
}

func TestSlidingWindow_PreviousWindowWeighsIn(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixedClock(windowStart())
	limiter := SlidingWindowFactory(c, newMemCounter(), "test")(2, time.Minute)

	for range 2 {
		res, err := limiter.Allow(ctx, "k")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	// next window start: the previous window still counts fully
	c.Advance(time.Minute)
	res, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// two windows later nothing carries over
	c.Advance(2 * time.Minute)
	res, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucket(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixedClock(windowStart())
	limiter := TokenBucketFactory(c)(2, time.Minute)

	for range 2 {
		res, err := limiter.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, 30*time.Second)

	res, err = limiter.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// refills at limit/window: one token every 30s
	c.Advance(30 * time.Second)
	res, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucket_EvictsRefilledBuckets(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixedClock(windowStart())
	limiter := NewTokenBucketRateLimiter(c, 2, time.Minute)

	for i := range 100 {
		_, err := limiter.Allow(ctx, Key(fmt.Sprintf("10.0.0.%d", i)))
		require.NoError(t, err)
	}
	require.Len(t, limiter.buckets, 100)

	c.Advance(2 * time.Minute)
	res, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Len(t, limiter.buckets, 1)
}

func TestTokenBucket_KeepsDrainedBuckets(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixedClock(windowStart())
	limiter := NewTokenBucketRateLimiter(c, 2, time.Minute)

	_, err := limiter.Allow(ctx, "first")
	require.NoError(t, err)

	c.Advance(50 * time.Second)
	for range 2 {
		_, err := limiter.Allow(ctx, "busy")
		require.NoError(t, err)
	}

	// the sweep is due, busy has half a token back
	c.Advance(15 * time.Second)
	_, err = limiter.Allow(ctx, "other")
	require.NoError(t, err)
	assert.Contains(t, limiter.buckets, Key("busy"))
	assert.NotContains(t, limiter.buckets, Key("first"))
}

func TestSlidingWindow_ZeroWindow(t *testing.T) {
	limiter := SlidingWindowFactory(clock.NewFixedClock(windowStart()), newMemCounter(), "test")(3, 0)

	_, err := limiter.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNoWindow)
}

func TestWeighted_RequestsCeil(t *testing.T) {
	window := uint64(time.Minute)

	// one current request plus half of two previous ones
	w := usage(1, 2, window/2, window)
	assert.True(t, w.within(2))
	assert.False(t, w.within(1))
	assert.EqualValues(t, 2, w.requestsCeil())

	// a third of a previous request still rounds up
	w = usage(1, 1, window-window/3, window)
	assert.EqualValues(t, 2, w.requestsCeil())
}
