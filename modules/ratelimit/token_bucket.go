// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"sync"
	"time"

	"persons/modules/clock"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*TokenBucketRateLimiter)(nil)

// TokenBucketRateLimiter keeps one in-process token bucket per key. The
// bucket holds limit tokens and refills at limit/window per second, so a
// burst of limit requests is allowed after an idle window.
//
// State is local to the process; use the sliding window over Redis when
// several instances share a budget. Buckets that have refilled completely
// are dropped, at most once per window, since a full bucket behaves like a
// new one.
type TokenBucketRateLimiter struct {
	clock  clock.Clock
	limit  int64
	window time.Duration
	every  rate.Limit

	mu        sync.Mutex
	buckets   map[Key]*rate.Limiter
	nextSweep time.Time
}

func TokenBucketFactory(c clock.Clock) LimiterFactory {
	return func(l int64, w time.Duration) RateLimiter {
		return NewTokenBucketRateLimiter(c, l, w)
	}
}

func NewTokenBucketRateLimiter(c clock.Clock, limit int64, window time.Duration) *TokenBucketRateLimiter {
	every := rate.Inf
	if window > 0 {
		every = rate.Limit(float64(limit) / window.Seconds())
	}
	return &TokenBucketRateLimiter{
		clock:   c,
		limit:   limit,
		window:  window,
		every:   every,
		buckets: make(map[Key]*rate.Limiter),
	}
}

// bucket must be called with t.mu held.
func (t *TokenBucketRateLimiter) bucket(key Key, now time.Time) *rate.Limiter {
	t.evictIdle(now)

	b, ok := t.buckets[key]
	if !ok {
		b = rate.NewLimiter(t.every, int(t.limit))
		t.buckets[key] = b
	}
	return b
}

func (t *TokenBucketRateLimiter) evictIdle(now time.Time) {
	if t.window <= 0 || now.Before(t.nextSweep) {
		return
	}
	for k, b := range t.buckets {
		if b.TokensAt(now) >= float64(t.limit) {
			delete(t.buckets, k)
		}
	}
	t.nextSweep = now.Add(t.window)
}

// Allow implements RateLimiter.
func (t *TokenBucketRateLimiter) Allow(_ context.Context, key Key) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	b := t.bucket(key, now)

	allowed := b.AllowN(now, 1)
	tokens := b.TokensAt(now)

	result := Result{
		Allowed:   allowed,
		Remaining: max(int64(tokens), 0),
		Limit:     t.limit,
		Window:    t.window,
	}

	// time until one full token is back
	if tokens < 1 && t.every > 0 && t.every != rate.Inf {
		wait := time.Duration((1 - tokens) / float64(t.every) * float64(time.Second))
		result.WindowResetIn = wait
		if !allowed {
			result.RetryAfter = wait
		}
	}

	return result, nil
}
