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

package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type (
	// HTTPMetrics holds the request instruments recorded by the telemetry
	// middleware.
	HTTPMetrics struct {
		requests metric.Int64Counter
		duration metric.Float64Histogram
		size     metric.Int64Histogram
		inFlight metric.Int64UpDownCounter
	}

	// Request describes one finished request. Route should be the mux
	// pattern, not the raw path, to keep cardinality bounded.
	Request struct {
		Method   string
		Route    string
		Status   int
		Duration time.Duration
		Size     int64
	}
)

// NewHTTPMetrics registers the instruments on the global MeterProvider.
func NewHTTPMetrics(serviceName string) (*HTTPMetrics, error) {
	return NewHTTPMetricsWithProvider(otel.GetMeterProvider(), serviceName)
}

func NewHTTPMetricsWithProvider(mp metric.MeterProvider, serviceName string) (*HTTPMetrics, error) {
	meter := mp.Meter(serviceName)

	requests, err := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"http_server_duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	size, err := meter.Int64Histogram(
		"http_server_response_size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requests: requests,
		duration: duration,
		size:     size,
		inFlight: inFlight,
	}, nil
}

// Start counts a request as in flight until the returned func is called.
func (m *HTTPMetrics) Start(ctx context.Context, method string) func() {
	attrs := metric.WithAttributes(attribute.String("http_method", method))
	m.inFlight.Add(ctx, 1, attrs)
	return func() { m.inFlight.Add(ctx, -1, attrs) }
}

func (m *HTTPMetrics) RecordRequest(ctx context.Context, req Request) {
	attrs := metric.WithAttributes(
		attribute.String("http_method", req.Method),
		attribute.String("http_endpoint", req.Route),
		attribute.String("http_status_code", strconv.Itoa(req.Status)),
	)

	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(req.Duration)/float64(time.Millisecond), attrs)
	if req.Size > 0 {
		m.size.Record(ctx, req.Size, attrs)
	}
}
