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
	"errors"
	"fmt"
	"math/bits"
	"time"

	"persons/modules/clock"
)

var (
	_ RateLimiter = (*SlidingWindowRateLimiter)(nil)

	ErrNoWindow = errors.New("ratelimit: window must be positive")
)

// SlidingWindowRateLimiter approximates a rolling window with two fixed
// windows: the current count plus the previous count weighted by how much
// of the previous window still overlaps the rolling one.
type SlidingWindowRateLimiter struct {
	clock     clock.Clock
	counter   CounterStore
	keyPrefix string

	limit  uint64
	window time.Duration
}

func SlidingWindowFactory(c clock.Clock, counter CounterStore, keyPrefix string) LimiterFactory {
	return func(limit int64, window time.Duration) RateLimiter {
		return &SlidingWindowRateLimiter{
			clock:     c,
			counter:   counter,
			keyPrefix: keyPrefix,
			limit:     uint64(max(limit, 0)),
			window:    window,
		}
	}
}

// Allow implements RateLimiter. The request is counted even when rejected.
func (s *SlidingWindowRateLimiter) Allow(ctx context.Context, key Key) (Result, error) {
	if s.window <= 0 {
		return Result{}, ErrNoWindow
	}

	nowNs := s.clock.Now().UnixNano()
	windowNs := s.window.Nanoseconds()
	idx := nowNs / windowNs

	cur, err := s.counter.Incr(ctx, s.windowKey(key, idx), 2*s.window)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: count current window: %w", err)
	}
	prev, err := s.counter.Get(ctx, s.windowKey(key, idx-1))
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: read previous window: %w", err)
	}

	elapsedNs := min(max(nowNs-idx*windowNs, 0), windowNs)
	resetIn := max(s.window-time.Duration(elapsedNs), 0)

	w := usage(max(cur, 0), max(prev, 0), uint64(elapsedNs), uint64(windowNs))
	res := Result{
		Allowed:       w.within(s.limit),
		Remaining:     int64(s.limit - min(w.requestsCeil(), s.limit)),
		Limit:         int64(s.limit),
		Window:        s.window,
		WindowResetIn: resetIn,
	}
	if !res.Allowed {
		res.RetryAfter = resetIn
	}
	return res, nil
}

func (s *SlidingWindowRateLimiter) windowKey(key Key, idx int64) string {
	return fmt.Sprintf("%s:%s:%d", s.keyPrefix, key, idx)
}

// weighted is cur*window + prev*(window-elapsed) as a 128-bit value, in
// request-nanoseconds. Integer math keeps two back to back requests from
// reporting the same remaining budget.
type weighted struct {
	hi, lo   uint64
	windowNs uint64
}

func usage(cur, prev int64, elapsedNs, windowNs uint64) weighted {
	curHi, curLo := bits.Mul64(uint64(cur), windowNs)
	prevHi, prevLo := bits.Mul64(uint64(prev), windowNs-elapsedNs)
	lo, carry := bits.Add64(curLo, prevLo, 0)
	hi, _ := bits.Add64(curHi, prevHi, carry)
	return weighted{hi: hi, lo: lo, windowNs: windowNs}
}

func (w weighted) within(limit uint64) bool {
	limHi, limLo := bits.Mul64(limit, w.windowNs)
	return w.hi < limHi || (w.hi == limHi && w.lo <= limLo)
}

// requestsCeil is ceil(usage / window), saturating at MaxUint64.
func (w weighted) requestsCeil() uint64 {
	if w.hi >= w.windowNs {
		return ^uint64(0)
	}
	q, r := bits.Div64(w.hi, w.lo, w.windowNs)
	if r != 0 && q != ^uint64(0) {
		q++
	}
	return q
}
