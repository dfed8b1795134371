package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecovery_WritesProblem(t *testing.T) {
	h := Recovery(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/persons", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRecovery_CustomHandler(t *testing.T) {
	var got any
	h := Recovery(func(w http.ResponseWriter, _ *http.Request, rec any) {
		got = rec
		w.WriteHeader(http.StatusServiceUnavailable)
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(42)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 42, got)
}

func TestResponseRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	rr := newResponseRecorder(rec)

	_, _ = rr.Write([]byte("hello"))
	rr.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusOK, rr.statusCode, "first write commits 200")
	assert.EqualValues(t, 5, rr.bytesWritten)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTelemetry_NilMetricsPassesThrough(t *testing.T) {
	h := Telemetry(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
