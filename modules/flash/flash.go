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

// Package flash holds one-shot notices keyed by session id. A notice queued
// by one request is surfaced by the next read and then gone.
package flash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"persons/modules/clock"
	"persons/modules/db"
	"persons/modules/db/redis"

	"github.com/redis/rueidis"
)

const (
	DefaultTTL       = 5 * time.Minute
	DefaultKeyPrefix = "persons:flash"
)

var ErrNoSession = errors.New("flash: empty session id")

type (
	FlashConfig struct {
		TTL       time.Duration `env:"TTL" envDefault:"5m"`
		KeyPrefix string        `env:"KEY_PREFIX" envDefault:"persons:flash"`
	}

	Store interface {
		// Put replaces the pending notice of sid.
		Put(ctx context.Context, sid, msg string) error
		// Take returns the pending notice of sid and clears it. "" when none.
		Take(ctx context.Context, sid string) (string, error)
	}

	// Taker consumes the notice of the current session.
	Taker interface {
		Take(ctx context.Context) (string, error)
	}

	// Putter queues a notice for the current session.
	Putter interface {
		Put(ctx context.Context, msg string) error
	}

	// Notice is the stored form of a queued message.
	Notice struct {
		Message  string    `json:"message"`
		QueuedAt time.Time `json:"queuedAt"`
	}
)

var _ Store = (*KVStore)(nil)

// KVStore keeps notices as JSON in any db.KV.
type KVStore struct {
	notices db.JSONKV[Notice]
	clock   clock.Clock
}

func NewKVStore(kv db.KV, c clock.Clock) *KVStore {
	if c == nil {
		c = clock.RealClockProvider()
	}
	return &KVStore{notices: db.NewJSONKV[Notice](kv), clock: c}
}

// NewMemoryStore keeps notices in process for ttl. ttl <= 0 uses DefaultTTL.
func NewMemoryStore(c clock.Clock, ttl time.Duration) *KVStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return NewKVStore(db.NewMemoryKV(c, ttl), c)
}

// NewRedisStore keeps notices under prefix with a server-side expiry of ttl.
func NewRedisStore(client rueidis.Client, prefix string, ttl time.Duration) *KVStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultKeyPrefix
	}
	kv := redis.NewRedisKV(client,
		redis.WithKeyPrefix(prefix),
		redis.WithDefaultTTL(ttl),
	)
	return NewKVStore(kv, nil)
}

func (s *KVStore) Put(ctx context.Context, sid, msg string) error {
	if sid == "" {
		return ErrNoSession
	}
	n := Notice{Message: msg, QueuedAt: s.clock.Now().UTC()}
	if _, err := s.notices.Set(ctx, sid, n); err != nil {
		return fmt.Errorf("flash: put: %w", err)
	}
	return nil
}

func (s *KVStore) Take(ctx context.Context, sid string) (string, error) {
	if sid == "" {
		return "", ErrNoSession
	}
	n, err := s.notices.Take(ctx, sid)
	if err != nil {
		return "", fmt.Errorf("flash: take: %w", err)
	}
	if n == nil {
		return "", nil
	}
	return n.Message, nil
}
