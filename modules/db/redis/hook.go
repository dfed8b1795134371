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

package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidishook"
)

var _ rueidishook.Hook = slowLogHook{}

// slowLogHook logs commands that fail or run longer than threshold.
type slowLogHook struct {
	threshold time.Duration
}

// WithSlowLog wraps client so slow and failing commands are logged.
// A threshold <= 0 returns client unchanged.
func WithSlowLog(client rueidis.Client, threshold time.Duration) rueidis.Client {
	if threshold <= 0 {
		return client
	}
	return rueidishook.WithHook(client, slowLogHook{threshold: threshold})
}

func commandName(cmds []string) string {
	if len(cmds) == 0 {
		return ""
	}
	return cmds[0]
}

func (h slowLogHook) observe(ctx context.Context, name string, n int, start time.Time, err error) {
	elapsed := time.Since(start)
	switch {
	case err != nil && !isNil(err):
		slog.WarnContext(ctx, "redis command failed",
			slog.String("command", name),
			slog.Int("batch", n),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
	case elapsed >= h.threshold:
		slog.WarnContext(ctx, "slow redis command",
			slog.String("command", name),
			slog.Int("batch", n),
			slog.Duration("elapsed", elapsed),
		)
	}
}

func firstErr(resps []rueidis.RedisResult) error {
	for _, r := range resps {
		if err := r.Error(); err != nil {
			return err
		}
	}
	return nil
}

// Command names are read before the call: completed commands are recycled afterwards.
func (h slowLogHook) Do(client rueidis.Client, ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	name, start := commandName(cmd.Commands()), time.Now()
	resp := client.Do(ctx, cmd)
	h.observe(ctx, name, 1, start, resp.Error())
	return resp
}

func (h slowLogHook) DoMulti(client rueidis.Client, ctx context.Context, multi ...rueidis.Completed) []rueidis.RedisResult {
	var name string
	if len(multi) > 0 {
		name = commandName(multi[0].Commands())
	}
	start := time.Now()
	resps := client.DoMulti(ctx, multi...)
	h.observe(ctx, name, len(multi), start, firstErr(resps))
	return resps
}

func (h slowLogHook) DoCache(client rueidis.Client, ctx context.Context, cmd rueidis.Cacheable, ttl time.Duration) rueidis.RedisResult {
	name, start := commandName(cmd.Commands()), time.Now()
	resp := client.DoCache(ctx, cmd, ttl)
	h.observe(ctx, name, 1, start, resp.Error())
	return resp
}

func (h slowLogHook) DoMultiCache(client rueidis.Client, ctx context.Context, multi ...rueidis.CacheableTTL) []rueidis.RedisResult {
	var name string
	if len(multi) > 0 {
		name = commandName(multi[0].Cmd.Commands())
	}
	start := time.Now()
	resps := client.DoMultiCache(ctx, multi...)
	h.observe(ctx, name, len(multi), start, firstErr(resps))
	return resps
}

func (h slowLogHook) Receive(client rueidis.Client, ctx context.Context, subscribe rueidis.Completed, fn func(msg rueidis.PubSubMessage)) error {
	return client.Receive(ctx, subscribe, fn)
}

func (h slowLogHook) DoStream(client rueidis.Client, ctx context.Context, cmd rueidis.Completed) rueidis.RedisResultStream {
	return client.DoStream(ctx, cmd)
}

func (h slowLogHook) DoMultiStream(client rueidis.Client, ctx context.Context, multi ...rueidis.Completed) rueidis.MultiRedisResultStream {
	return client.DoMultiStream(ctx, multi...)
}
