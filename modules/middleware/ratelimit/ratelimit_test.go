package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"persons/modules/clock"
	rl "persons/modules/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPolicy(t *testing.T, cfg *Config) *RuntimePolicy {
	t.Helper()
	c := clock.NewFixedClock(time.Unix(0, 0).Add(time.Hour))
	rtp, err := ParsePolicy(rl.TokenBucketFactory(c), cfg, ServeMuxRouteInfo, cfg.KeyStrategies())
	require.NoError(t, err)
	return rtp
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_LimitsPostByRemoteIP(t *testing.T) {
	rtp := newPolicy(t, &Config{
		AllowIfNoMatch: true,
		DefaultPolicy:  EndpointRule{Method: "post", Limit: 2, Window: time.Minute, KeyStrategy: RemoteIpKeyStrategy},
	})
	h := NewRateLimitMiddleware(rtp)(okHandler())

	post := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/persons/save", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for range 2 {
		rec := post("10.0.0.1")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := post("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, post("10.0.0.2").Code)

	// GETs have no policy and pass through
	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/persons", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestMiddleware_ExplicitRouteWins(t *testing.T) {
	rtp := newPolicy(t, &Config{
		AllowIfNoMatch: true,
		DefaultPolicy:  EndpointRule{Method: "POST", Limit: 100, Window: time.Minute, KeyStrategy: RemoteIpKeyStrategy},
		Routes: []Route{{
			Pattern:       "POST /persons/delete",
			EndpointRules: []EndpointRule{{Method: "POST", Limit: 1, Window: time.Minute, KeyStrategy: RemoteIpKeyStrategy}},
		}},
	})
	h := NewRateLimitMiddleware(rtp)(okHandler())

	codes := make([]int, 0, 2)
	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/persons/delete?id=1", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestMiddleware_DenyWithoutPolicy(t *testing.T) {
	rtp := newPolicy(t, &Config{AllowIfNoMatch: false})
	rec := httptest.NewRecorder()
	NewRateLimitMiddleware(rtp)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestParsePolicy_Errors(t *testing.T) {
	c := clock.NewFixedClock(time.Now())
	keys := (&Config{}).KeyStrategies()
	_, err := ParsePolicy(rl.TokenBucketFactory(c), &Config{
		DefaultPolicy: EndpointRule{Limit: 1, Window: time.Second, KeyStrategy: "api_key"},
	}, ServeMuxRouteInfo, keys)
	assert.ErrorIs(t, err, ErrUnknownKeyStrategy)

	rule := EndpointRule{Method: "POST", Limit: 1, Window: time.Second, KeyStrategy: RemoteIpKeyStrategy}
	_, err = ParsePolicy(rl.TokenBucketFactory(c), &Config{
		Routes: []Route{{Pattern: "POST /x", EndpointRules: []EndpointRule{rule, rule}}},
	}, ServeMuxRouteInfo, keys)
	assert.ErrorIs(t, err, ErrDuplicateRule)

	_, err = ParsePolicy(rl.TokenBucketFactory(c), &Config{
		Routes: []Route{{Pattern: "POST /x", EndpointRules: []EndpointRule{{Method: "POST", Window: time.Second, KeyStrategy: RemoteIpKeyStrategy}}}},
	}, ServeMuxRouteInfo, keys)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestRemoteIpKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, rl.Key("192.0.2.1"), RemoteIpKeyFunc(req))
	assert.Equal(t, rl.Key("192.0.2.1"), ForwardedIpKeyFunc(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 198.51.100.7")
	assert.Equal(t, rl.Key("192.0.2.1"), RemoteIpKeyFunc(req))
	assert.Equal(t, rl.Key("198.51.100.7"), ForwardedIpKeyFunc(req))
}

func TestMiddleware_IgnoresForwardedForByDefault(t *testing.T) {
	rule := EndpointRule{Method: "POST", Limit: 2, Window: time.Minute, KeyStrategy: RemoteIpKeyStrategy}

	post := func(h http.Handler, i int) int {
		req := httptest.NewRequest(http.MethodPost, "/persons/save", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	h := NewRateLimitMiddleware(newPolicy(t, &Config{AllowIfNoMatch: true, DefaultPolicy: rule}))(okHandler())
	allowed := 0
	for i := range 50 {
		if post(h, i) == http.StatusNoContent {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)

	trusted := NewRateLimitMiddleware(newPolicy(t, &Config{AllowIfNoMatch: true, DefaultPolicy: rule, TrustForwarded: true}))(okHandler())
	for i := range 5 {
		assert.Equal(t, http.StatusNoContent, post(trusted, i), "each forwarded address has its own budget")
	}
}
