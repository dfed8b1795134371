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
package redis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"persons/modules/db"

	"github.com/redis/rueidis"
)

var (
	_ db.KV = (*RedisKV)(nil)

	ErrNilValue = errors.New("redis kv: nil values are not allowed")

	//go:embed atomic_set.lua
	atomicSetLua string

	// GET + SET (+ EX) in one round trip, returning the previous value.
	luaAtomicSet = rueidis.NewLuaScript(atomicSetLua)
)

// RedisKV is a rueidis-backed db.KV with key prefixing and an optional
// default TTL on writes.
type RedisKV struct {
	client rueidis.Client

	// prefix is empty or ends with ":".
	prefix string

	// defaultTTL is applied to every AtomicSet if > 0.
	defaultTTL time.Duration

	// enableClientCache routes AtomicGet through DoCache.
	enableClientCache bool
}

type RedisKVOption func(*RedisKV)

// WithKeyPrefix scopes all keys under prefix, e.g. "persons:flash" stores
// "abc" as "persons:flash:abc".
func WithKeyPrefix(prefix string) RedisKVOption {
	return func(k *RedisKV) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" && !strings.HasSuffix(prefix, ":") {
			prefix += ":"
		}
		k.prefix = prefix
	}
}

// WithDefaultTTL sets the expiry of every AtomicSet. A value <= 0 means no TTL.
func WithDefaultTTL(ttl time.Duration) RedisKVOption {
	return func(k *RedisKV) {
		k.defaultTTL = ttl
	}
}

// WithClientSideCache enables server-assisted client-side caching for
// AtomicGet. RedisConfig.ClientTrackingPrefixes must cover the key prefix.
func WithClientSideCache() RedisKVOption {
	return func(k *RedisKV) {
		k.enableClientCache = true
	}
}

// NewRedisKV builds a RedisKV. One client may back several RedisKV values
// with different prefixes.
func NewRedisKV(client rueidis.Client, opts ...RedisKVOption) *RedisKV {
	kv := &RedisKV{
		client: client,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(kv)
		}
	}
	return kv
}

func (k *RedisKV) key(raw string) string {
	return k.prefix + raw
}

// AtomicGet implements db.KV.
func (k *RedisKV) AtomicGet(ctx context.Context, key string) (any, error) {
	fullKey := k.key(key)

	var res rueidis.RedisResult
	if k.enableClientCache && k.defaultTTL > 0 {
		res = k.client.DoCache(ctx, k.client.B().Get().Key(fullKey).Cache(), k.defaultTTL)
	} else {
		res = k.client.Do(ctx, k.client.B().Get().Key(fullKey).Build())
	}

	return bytesOrNil(res, "AtomicGet", key)
}

// AtomicSet implements db.KV.
func (k *RedisKV) AtomicSet(ctx context.Context, key string, value any) (any, error) {
	serialized, err := encodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("redis kv: encode value for key %q: %w", key, err)
	}

	res := luaAtomicSet.Exec(ctx, k.client, []string{k.key(key)}, []string{serialized, k.ttlArg()})
	return bytesOrNil(res, "AtomicSet", key)
}

// AtomicTake implements db.KV with GETDEL (Redis >= 6.2).
func (k *RedisKV) AtomicTake(ctx context.Context, key string) (any, error) {
	res := k.client.Do(ctx, k.client.B().Getdel().Key(k.key(key)).Build())
	return bytesOrNil(res, "AtomicTake", key)
}

// HealthCheck PINGs the server.
func (k *RedisKV) HealthCheck(ctx context.Context) error {
	return k.client.Do(ctx, k.client.B().Ping().Build()).Error()
}

func (k *RedisKV) ttlArg() string {
	if k.defaultTTL <= 0 {
		return ""
	}
	return strconv.FormatInt(max(int64(k.defaultTTL/time.Second), 1), 10)
}

// bytesOrNil maps a NIL reply to (nil, nil) and returns raw bytes otherwise
// so wrappers can decode them.
func bytesOrNil(res rueidis.RedisResult, op, key string) (any, error) {
	bs, err := res.AsBytes()
	if err != nil {
		if isNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis kv: %s %q failed: %w", op, key, err)
	}
	return bs, nil
}

func isNil(err error) bool {
	if rueidis.IsRedisNil(err) {
		return true
	}
	re, ok := rueidis.IsRedisErr(err)
	return ok && re.IsNil()
}

// encodeValue serializes a value into a Redis string: strings and byte
// slices as-is, Stringers via String(), everything else as JSON.
func encodeValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", ErrNilValue
	case string:
		return x, nil
	case []byte:
		return rueidis.BinaryString(x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return rueidis.BinaryString(b), nil
	}
}
