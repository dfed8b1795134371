package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInit_Off(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "person-api", Mode: ModeOff})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Validation(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNoServiceName)

	_, err = Init(context.Background(), Config{ServiceName: "x", Mode: "sideways"})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		mode     Mode
		attached bool
		want     Mode
	}{
		{"", false, ModeManual},
		{ModeDetect, true, ModeAuto},
		{ModeAuto, false, ModeOff},
		{ModeAuto, true, ModeAuto},
		{ModeManual, true, ModeManual},
		{ModeOff, true, ModeOff},
	}
	for _, tt := range tests {
		got, err := resolveMode(context.Background(), tt.mode, tt.attached)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "mode=%q attached=%v", tt.mode, tt.attached)
	}
}

func TestSignalProtocol(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_PROTOCOL", "http/protobuf")
	assert.Equal(t, protoGRPC, signalProtocol("TRACES"))
	assert.Equal(t, protoHTTP, signalProtocol("METRICS"))
}

func TestHTTPMetrics_Record(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewHTTPMetricsWithProvider(mp, "person-api")
	require.NoError(t, err)

	done := m.Start(ctx, "GET")
	m.RecordRequest(ctx, Request{Method: "GET", Route: "GET /persons", Status: 200, Duration: 12 * time.Millisecond, Size: 512})
	done()
	m.RecordRequest(ctx, Request{Method: "POST", Route: "POST /persons/save", Status: 303, Duration: 3 * time.Millisecond})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
			if md.Name == "http_server_requests_total" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				assert.EqualValues(t, 2, total)
			}
		}
	}
	assert.True(t, names["http_server_requests_total"])
	assert.True(t, names["http_server_duration"])
	assert.True(t, names["http_server_response_size"])
	assert.True(t, names["http_server_active_requests"])
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0.5).Description(), "ParentBased")
}
