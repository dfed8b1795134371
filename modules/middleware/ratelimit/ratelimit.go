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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"persons/modules/middleware/problem"
	rl "persons/modules/ratelimit"
)

var (
	ErrUnknownKeyStrategy = errors.New("ratelimit parse policy: no such key strategy")
	ErrDuplicateRule      = errors.New("ratelimit parse policy: duplicate method config on same pattern")
)

type (
	Pattern string
	method  string

	// KeyFunc extracts the identifier a request is counted under.
	KeyFunc func(*http.Request) rl.Key

	// RouteInfoFunc extracts the route a request is matched against.
	RouteInfoFunc func(*http.Request) RouteInfo

	RouteInfo struct {
		ID     Pattern
		Method string
		Path   string
	}

	Policy struct {
		Limiter rl.RateLimiter
		KeyFn   KeyFunc
	}

	// RuntimePolicy is the compiled form of Config.
	RuntimePolicy struct {
		policyMap map[Pattern]map[method]Policy

		// A method-specific default takes precedence over the catch-all default.
		defaultPolicyByMethod map[method]Policy
		defaultPolicy         *Policy

		// AllowIfNoMatch passes requests without any applicable policy.
		AllowIfNoMatch bool
		// AllowIfNoIdentifier passes requests whose KeyFn yields an empty key.
		AllowIfNoIdentifier bool

		RouteInfoFn RouteInfoFunc
	}
)

type policySource string

const (
	policySourceExplicit      policySource = "explicit"
	policySourceDefaultMethod policySource = "default_method"
	policySourceDefaultAll    policySource = "default"
)

func normalizeMethod(m string) method {
	return method(strings.ToUpper(m))
}

func (p *RuntimePolicy) findPolicy(ri RouteInfo) (Policy, bool, policySource) {
	m := normalizeMethod(ri.Method)
	if px, ok := p.policyMap[ri.ID][m]; ok {
		return px, true, policySourceExplicit
	}
	if px, ok := p.defaultPolicyByMethod[m]; ok {
		return px, true, policySourceDefaultMethod
	}
	if p.defaultPolicy != nil {
		return *p.defaultPolicy, true, policySourceDefaultAll
	}
	return Policy{}, false, ""
}

// ParsePolicy compiles cfg into a RuntimePolicy. Every rule gets its own
// limiter from factory.
func ParsePolicy(
	factory rl.LimiterFactory,
	cfg *Config,
	routeFn RouteInfoFunc,
	keyStrategies map[KeyStrategyId]KeyFunc,
) (*RuntimePolicy, error) {
	rtp := &RuntimePolicy{
		policyMap:           make(map[Pattern]map[method]Policy),
		AllowIfNoIdentifier: cfg.AllowIfNoIdentifier,
		AllowIfNoMatch:      cfg.AllowIfNoMatch,
		RouteInfoFn:         routeFn,
	}

	compile := func(rule EndpointRule) (Policy, error) {
		if err := rule.validate(); err != nil {
			return Policy{}, err
		}
		ks, ok := keyStrategies[rule.KeyStrategy]
		if !ok {
			return Policy{}, fmt.Errorf("%w: %q", ErrUnknownKeyStrategy, rule.KeyStrategy)
		}
		return Policy{Limiter: factory(rule.Limit, rule.Window), KeyFn: ks}, nil
	}

	// The default rule only counts as configured with a window and a key strategy.
	if d := cfg.DefaultPolicy; d.Window > 0 && d.KeyStrategy != "" {
		px, err := compile(d)
		if err != nil {
			return nil, err
		}
		if d.Method != "" {
			rtp.defaultPolicyByMethod = map[method]Policy{normalizeMethod(d.Method): px}
		} else {
			rtp.defaultPolicy = &px
		}
	}

	for _, r := range cfg.Routes {
		pat := Pattern(r.Pattern)
		if _, ok := rtp.policyMap[pat]; !ok {
			rtp.policyMap[pat] = make(map[method]Policy)
		}

		for _, rule := range r.EndpointRules {
			m := normalizeMethod(rule.Method)
			if _, ok := rtp.policyMap[pat][m]; ok {
				return nil, fmt.Errorf("%w: %s %s", ErrDuplicateRule, m, pat)
			}
			px, err := compile(rule)
			if err != nil {
				return nil, err
			}
			rtp.policyMap[pat][m] = px
		}
	}
	return rtp, nil
}

func NewRateLimitMiddleware(p *RuntimePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ri := p.RouteInfoFn(r)
			log := slog.With(
				slog.String("middleware", "rate_limiter"),
				slog.String("url", r.URL.Path),
				slog.Any("route_info", ri),
			)

			if ri.Method == "" {
				log.ErrorContext(ctx, "no method found")
				problem.Write(w, problem.MethodNotAllowed("method not allowed", problem.WithRequest(r)))
				return
			}

			px, ok, src := p.findPolicy(ri)
			if !ok {
				if p.AllowIfNoMatch {
					next.ServeHTTP(w, r)
					return
				}
				log.WarnContext(ctx, "no rate limit policy found")
				problem.Write(w, problem.TooManyRequests("rate limit exceeded", problem.WithRequest(r)))
				return
			}
			if src != policySourceExplicit {
				log.DebugContext(ctx, "using default rate limit policy", slog.String("policy_source", string(src)))
			}

			var key rl.Key
			if px.KeyFn != nil {
				key = px.KeyFn(r)
			}
			if key == "" {
				if p.AllowIfNoIdentifier {
					next.ServeHTTP(w, r)
					return
				}
				log.WarnContext(ctx, "no rate limit key")
				problem.Write(w, problem.TooManyRequests("rate limit exceeded", problem.WithRequest(r)))
				return
			}

			result, err := px.Limiter.Allow(ctx, key)
			if err != nil {
				// counter store may be down
				log.ErrorContext(ctx, "rate limit error", slog.Any("error", err))
				problem.Write(w, problem.Internal("rate limiter unavailable", problem.WithRequest(r)))
				return
			}

			// handlers may reset headers, re-apply them right before the response is committed
			w = &rateLimitHeaderWriter{ResponseWriter: w, result: result}

			if !result.Allowed {
				log.DebugContext(ctx, "rate limited", slog.String("key", string(key)))
				if result.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()+0.5), 10))
				}
				problem.Write(w, problem.TooManyRequests("rate limit exceeded", problem.WithRequest(r)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, result rl.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	h.Set("X-RateLimit-Window-Seconds", strconv.FormatInt(int64(result.Window.Seconds()), 10))
	h.Set("X-RateLimit-Reset-Seconds", strconv.FormatInt(int64(result.WindowResetIn.Seconds()), 10))
}

type rateLimitHeaderWriter struct {
	http.ResponseWriter
	result  rl.Result
	ensured bool
}

func (w *rateLimitHeaderWriter) ensure() {
	if w.ensured {
		return
	}
	writeRateLimitHeaders(w.ResponseWriter, w.result)
	w.ensured = true
}

func (w *rateLimitHeaderWriter) WriteHeader(statusCode int) {
	w.ensure()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *rateLimitHeaderWriter) Write(p []byte) (int, error) {
	w.ensure()
	return w.ResponseWriter.Write(p)
}

func (w *rateLimitHeaderWriter) Flush() {
	w.ensure()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ForwardedIpKeyFunc keys on the last X-Forwarded-For hop, the address the
// fronting proxy saw. Only safe behind a proxy that sets the header.
func ForwardedIpKeyFunc(r *http.Request) rl.Key {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[len(ips)-1]); ip != "" {
			return rl.Key(ip)
		}
	}
	return RemoteIpKeyFunc(r)
}

// RemoteIpKeyFunc keys on the connection's remote host.
func RemoteIpKeyFunc(r *http.Request) rl.Key {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return rl.Key(r.RemoteAddr)
	}
	return rl.Key(host)
}

// ServeMuxRouteInfo uses the matched http.ServeMux pattern when the request
// was already routed. Global middlewares run before routing, so the ID then
// falls back to "METHOD /path", which equals the pattern of static routes.
func ServeMuxRouteInfo(r *http.Request) RouteInfo {
	id := Pattern(r.Pattern)
	if r.Pattern == "" {
		id = Pattern(r.Method + " " + r.URL.Path)
	}
	return RouteInfo{
		ID:     id,
		Method: r.Method,
		Path:   r.URL.Path,
	}
}
