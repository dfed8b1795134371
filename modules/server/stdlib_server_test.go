package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingService struct{ header string }

func (p pingService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

func (p pingService) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{tag(p.header, "svc")}
}

func tag(header, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add(header, value)
			next.ServeHTTP(w, r)
		})
	}
}

func TestNew_RejectsBadPort(t *testing.T) {
	_, err := New("localhost", 0)
	assert.Error(t, err)
	_, err = New("localhost", 70000)
	assert.Error(t, err)
}

func TestNew_DefaultsHost(t *testing.T) {
	s, err := New("", 8080)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", s.Addr())
}

func TestNew_MiddlewareOrder(t *testing.T) {
	s, err := New("localhost", 8080,
		WithGlobalMiddlewares(tag("X-Order", "first"), tag("X-Order", "second")),
		WithServices(pingService{header: "X-Order"}),
	)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.Equal(t, []string{"first", "second", "svc"}, rec.Header().Values("X-Order"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	s, err := New("127.0.0.1", port, WithServices(pingService{header: "X"}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + s.Addr() + "/ping")
		if err != nil {
			return false
		}
		_ = res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
