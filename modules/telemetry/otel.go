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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	ErrNoServiceName = errors.New("telemetry: service name is required")
	ErrUnknownMode   = errors.New("telemetry: unknown mode")
)

// ShutdownFunc flushes and stops whatever Init installed.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

type protocol string

const (
	protoGRPC protocol = "grpc"
	protoHTTP protocol = "http/protobuf"
)

// Init installs the global providers selected by cfg.Mode. Call once on startup.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.ServiceName == "" {
		return nil, ErrNoServiceName
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 5 * time.Second
	}

	mode, err := resolveMode(ctx, cfg.Mode, goAutoAttached())
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeOff:
		slog.InfoContext(ctx, "telemetry disabled")
		return noopShutdown, nil
	case ModeAuto:
		return initAuto(ctx, cfg)
	default:
		return initSDK(ctx, cfg)
	}
}

// resolveMode maps the configured mode onto the one that will run. Auto
// without an attached agent degrades to off.
func resolveMode(ctx context.Context, m Mode, attached bool) (Mode, error) {
	switch m {
	case "", ModeDetect:
		if attached {
			return ModeAuto, nil
		}
		return ModeManual, nil
	case ModeAuto:
		if !attached {
			slog.WarnContext(ctx, "telemetry: auto mode requested but no Go auto-instrumentation detected")
			return ModeOff, nil
		}
		return ModeAuto, nil
	case ModeManual, ModeOff:
		return m, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, m)
}

// goAutoAttached reports whether the OpenTelemetry Operator's Go
// auto-instrumentation runs next to this process.
func goAutoAttached() bool {
	if os.Getenv("OTEL_GO_AUTO_TARGET_EXE") != "" {
		return true
	}
	switch strings.ToLower(os.Getenv("OTEL_GO_AUTO_ENABLED")) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// initAuto leaves tracing to the agent and only installs a MeterProvider
// for the application's own instruments. Metric export failures are not fatal.
func initAuto(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if len(otel.GetTextMapPropagator().Fields()) == 0 {
		installPropagator()
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		slog.WarnContext(ctx, "telemetry: continuing without application metrics", slog.Any("error", err))
		return noopShutdown, nil
	}
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: meter provider shutdown: %w", err)
		}
		return nil
	}, nil
}

// initSDK runs the in-process SDK with OTLP exporters for traces and,
// unless disabled, metrics.
func initSDK(parent context.Context, cfg Config) (ShutdownFunc, error) {
	ctx, cancel := context.WithTimeout(parent, cfg.StartupTimeout)
	defer cancel()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	exp, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplerRatio)),
	)
	otel.SetTracerProvider(tp)
	installPropagator()

	var mp *sdkmetric.MeterProvider
	if !cfg.DisableMetrics {
		if mp, err = newMeterProvider(ctx, cfg, res); err != nil {
			_ = tp.Shutdown(parent)
			return nil, fmt.Errorf("telemetry: build metric exporter: %w", err)
		}
		otel.SetMeterProvider(mp)
	}

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: tracer provider shutdown: %w", err))
		}
		if mp != nil {
			if err := mp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("telemetry: meter provider shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	}, nil
}

func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithOS(),
		resource.WithAttributes(attrs...),
	)
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	), nil
}

// signalProtocol reads OTEL_EXPORTER_OTLP_<SIGNAL>_PROTOCOL, then the
// shared OTEL_EXPORTER_OTLP_PROTOCOL. Anything but grpc means HTTP.
func signalProtocol(signal string) protocol {
	v := os.Getenv("OTEL_EXPORTER_OTLP_" + signal + "_PROTOCOL")
	if v == "" {
		v = os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	}
	if protocol(v) == protoGRPC {
		return protoGRPC
	}
	return protoHTTP
}

func isURL(ep string) bool {
	return strings.HasPrefix(ep, "http://") || strings.HasPrefix(ep, "https://")
}

func newTraceExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	ep := cfg.OTLPEndpoint

	if signalProtocol("TRACES") == protoGRPC {
		var opts []otlptracegrpc.Option
		switch {
		case ep == "":
		case isURL(ep):
			opts = append(opts, otlptracegrpc.WithEndpointURL(ep))
		default:
			opts = append(opts, otlptracegrpc.WithEndpoint(ep))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	var opts []otlptracehttp.Option
	switch {
	case ep == "":
	case isURL(ep):
		opts = append(opts, otlptracehttp.WithEndpointURL(ep))
	default:
		opts = append(opts, otlptracehttp.WithEndpoint(ep))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

// newMetricExporter prefers OTEL_EXPORTER_OTLP_METRICS_ENDPOINT over the
// configured trace endpoint.
func newMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	ep := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if ep == "" {
		ep = cfg.OTLPEndpoint
	}
	insecure := cfg.Insecure || os.Getenv("OTEL_EXPORTER_OTLP_METRICS_INSECURE") == "true"

	if signalProtocol("METRICS") == protoGRPC {
		var opts []otlpmetricgrpc.Option
		switch {
		case ep == "":
		case isURL(ep):
			opts = append(opts, otlpmetricgrpc.WithEndpointURL(ep))
		default:
			opts = append(opts, otlpmetricgrpc.WithEndpoint(ep))
		}
		if insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}

	var opts []otlpmetrichttp.Option
	switch {
	case ep == "":
	case isURL(ep):
		opts = append(opts, otlpmetrichttp.WithEndpointURL(ep))
	default:
		opts = append(opts, otlpmetrichttp.WithEndpoint(ep))
	}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
