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

// Package ratelimit decides whether a keyed request fits its budget. The
// sliding window shares state through a CounterStore; the token bucket keeps
// it in process.
package ratelimit

import (
	"context"
	"time"
)

type (
	// LimiterFactory builds one limiter per configured rule.
	LimiterFactory func(limit int64, window time.Duration) RateLimiter

	// RateLimiter enforces "limit requests per window" budgets.
	RateLimiter interface {
		Allow(ctx context.Context, key Key) (Result, error)
	}

	// Key identifies who is being counted, e.g. a remote IP.
	Key string

	Result struct {
		Allowed bool
		// Remaining is what is left of the budget after this request.
		Remaining int64
		// RetryAfter is zero when allowed.
		RetryAfter    time.Duration
		Limit         int64
		Window        time.Duration
		WindowResetIn time.Duration
	}

	// CounterStore keeps the per-window counters of the sliding window.
	CounterStore interface {
		// Incr adds one to key and returns the new value. A new key lives at
		// least ttl.
		Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

		// Get returns the counter at key; missing keys read as 0.
		Get(ctx context.Context, key string) (int64, error)
	}
)
