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
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidisotel"
)

var (
	ErrEmptyURL     = errors.New("rueidis: URL must not be empty")
	ErrPlaintextURL = errors.New("rueidis: TLS required but URL uses redis:// (plaintext); use rediss://")
	ErrPlaintextAWS = errors.New("rueidis: aws endpoint detected but URL uses redis:// (plaintext)")
	pingTimeout     = 5 * time.Second
)

// NewRueidisClient creates a rueidis.Client from RedisConfig and PINGs it
// before returning.
func NewRueidisClient(ctx context.Context, opt RedisConfig) (rueidis.Client, error) {
	clientOpt, err := clientOption(ctx, opt)
	if err != nil {
		return nil, err
	}

	var cli rueidis.Client
	if opt.EnableOtel {
		cli, err = rueidisotel.NewClient(clientOpt)
	} else {
		cli, err = rueidis.NewClient(clientOpt)
	}
	if err != nil {
		slog.ErrorContext(ctx, "error during rueidis init", slog.Any("error", err))
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := cli.Do(pingCtx, cli.B().Ping().Build()).Error(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("rueidis: ping: %w", err)
	}

	cli = WithSlowLog(cli, opt.SlowLogThreshold)

	slog.InfoContext(ctx, "rueidis: connected",
		slog.String("mode", string(cli.Mode())),
		slog.String("client_name", opt.ClientName),
		slog.Bool("otel", opt.EnableOtel),
	)

	return cli, nil
}

// clientOption validates the URL against the TLS settings and maps the
// tuning flags onto rueidis.ClientOption.
func clientOption(ctx context.Context, opt RedisConfig) (rueidis.ClientOption, error) {
	if opt.URL == "" {
		return rueidis.ClientOption{}, ErrEmptyURL
	}

	u, err := url.Parse(opt.URL)
	if err != nil {
		return rueidis.ClientOption{}, fmt.Errorf("rueidis: parse url: %w", err)
	}

	plaintext := u.Scheme == "redis"
	aws := strings.Contains(u.Host, ".cache.amazonaws.com")

	switch {
	case plaintext && opt.RequireTLS:
		return rueidis.ClientOption{}, ErrPlaintextURL
	case plaintext && aws && opt.AutoDetectAWS:
		return rueidis.ClientOption{}, ErrPlaintextAWS
	case plaintext && (opt.SkipTLSVerify || opt.AutoDetectAWS):
		slog.WarnContext(ctx, "rueidis: redis:// URL ignores TLS-related options",
			slog.String("host", u.Hostname()),
			slog.Bool("skip_tls_verify", opt.SkipTLSVerify),
			slog.Bool("auto_detect_aws", opt.AutoDetectAWS),
		)
	}

	if opt.DisableCache && len(opt.ClientTrackingPrefixes) > 0 {
		slog.WarnContext(ctx, "turning on tracking on the server with no client cache benefit")
	}

	clientOpt, err := rueidis.ParseURL(opt.URL)
	if err != nil {
		return rueidis.ClientOption{}, err
	}

	clientOpt.ClientName = opt.ClientName
	clientOpt.DisableRetry = opt.DisableRetry
	clientOpt.DisableCache = opt.DisableCache
	clientOpt.AlwaysPipelining = opt.AlwaysPipelining
	if opt.RingScaleEachConn > 0 {
		clientOpt.RingScaleEachConn = opt.RingScaleEachConn
	}
	if opt.CacheSizeEachConn > 0 {
		clientOpt.CacheSizeEachConn = opt.CacheSizeEachConn
	}
	if opt.ConnWriteTimeout > 0 {
		clientOpt.ConnWriteTimeout = opt.ConnWriteTimeout
	}

	if opt.SkipTLSVerify || (aws && opt.AutoDetectAWS) {
		tc := &tls.Config{}
		if clientOpt.TLSConfig != nil {
			tc = clientOpt.TLSConfig.Clone()
		}
		tc.InsecureSkipVerify = true //nolint:gosec
		clientOpt.TLSConfig = tc
	}

	// BCAST + OPTIN: tracking is opt-in per command through DoCache.
	if len(opt.ClientTrackingPrefixes) > 0 {
		tracking := make([]string, 0, len(opt.ClientTrackingPrefixes)*2+2)
		for _, p := range opt.ClientTrackingPrefixes {
			if p = strings.TrimSpace(p); p != "" {
				tracking = append(tracking, "PREFIX", p)
			}
		}
		clientOpt.ClientTrackingOptions = append(tracking, "BCAST", "OPTIN")
	}

	return clientOpt, nil
}
