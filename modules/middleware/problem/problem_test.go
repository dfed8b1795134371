package problem

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrite_BadRequestWithInvalidParams(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, BadRequest("invalid form",
		WithInvalidParam("person.birthDate", "expected yyyy-MM-dd"),
		WithInvalidParam("person.id", "not an integer"),
		WithExtension("form", "person"),
	))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	assert.Equal(t, "about:blank", body["type"])
	assert.Equal(t, "Bad Request", body["title"])
	assert.EqualValues(t, 400, body["status"])
	assert.Equal(t, "invalid form", body["detail"])
	assert.Equal(t, "person", body["form"])

	params, ok := body["invalidParams"].([]any)
	require.True(t, ok)
	require.Len(t, params, 2)
	assert.Equal(t, "person.birthDate", params[0].(map[string]any)["name"])
}

func TestNew_Titles(t *testing.T) {
	tests := []struct {
		status int
		title  string
	}{
		{http.StatusServiceUnavailable, "Service Unavailable"},
		{http.StatusTooManyRequests, "Too Many Requests"},
		{599, "Unknown Error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.title, New(tt.status, "").Title)
	}
}

func TestWrite_Nil(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	_, hasDetail := decodeBody(t, rec)["detail"]
	assert.False(t, hasDetail)
}

func TestWithRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/persons/save", nil)
	p := Internal("boom", WithRequest(req))
	assert.Equal(t, "/persons/save", p.Instance)
	assert.Empty(t, p.TraceID)

	tid := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: trace.SpanID{1}})
	req = req.WithContext(trace.ContextWithSpanContext(context.Background(), sc))
	p = Internal("boom", WithRequest(req))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", p.TraceID)
}

func TestExtensionsDoNotOverrideBaseFields(t *testing.T) {
	b, err := json.Marshal(New(http.StatusNotFound, "gone", WithExtension("status", 999)))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(b, &body))
	assert.EqualValues(t, 404, body["status"])
}
