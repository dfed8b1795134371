// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"persons/modules/clock"
)

var _ KV = (*MemoryKV)(nil)

// MemoryKV is an in-process KV for single-instance runs and tests.
// Expired entries are dropped on access, and writes sweep the whole map at
// most once per ttl.
type MemoryKV struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	clock     clock.Clock
	ttl       time.Duration
	nextSweep time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryKV returns an empty store. ttl <= 0 keeps entries forever.
func NewMemoryKV(c clock.Clock, ttl time.Duration) *MemoryKV {
	if c == nil {
		c = clock.RealClockProvider()
	}
	return &MemoryKV{
		entries: make(map[string]memoryEntry),
		clock:   c,
		ttl:     ttl,
	}
}

func (m *MemoryKV) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.clock.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryKV) sweep(now time.Time) {
	if m.ttl <= 0 || now.Before(m.nextSweep) {
		return
	}
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.nextSweep = now.Add(m.ttl)
}

// AtomicGet implements KV.
func (m *MemoryKV) AtomicGet(_ context.Context, key string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, nil
	}
	return e.value, nil
}

// AtomicSet implements KV. Only string and []byte values are accepted.
func (m *MemoryKV) AtomicSet(_ context.Context, key string, value any) (any, error) {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = append([]byte(nil), v...)
	case string:
		b = []byte(v)
	default:
		return nil, fmt.Errorf("memory kv: unsupported value type %T for key %q", value, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.sweep(now)

	var prev any
	if e, ok := m.live(key); ok {
		prev = e.value
	}

	e := memoryEntry{value: b}
	if m.ttl > 0 {
		e.expiresAt = now.Add(m.ttl)
	}
	m.entries[key] = e
	return prev, nil
}

// AtomicTake implements KV.
func (m *MemoryKV) AtomicTake(_ context.Context, key string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, nil
	}
	delete(m.entries, key)
	return e.value, nil
}
