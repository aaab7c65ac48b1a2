// Package observability records Prometheus metrics per dispatched action
// (fed through Dispatcher.OnComplete) and sets up an OpenTelemetry tracer
// provider; nothing in this module starts spans. It is an optional layer
// neither dispatch nor consensus depends on directly.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shelvick/quoracle/config"
)

// Tracer wraps an OpenTelemetry TracerProvider, closeable on shutdown.
type Tracer struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// NewTracer builds a Tracer from a TracingConfig. Disabled configs get a
// no-op provider so callers never need to nil-check before starting a
// span.
func NewTracer(ctx context.Context, cfg config.TracingConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{provider: noop.NewTracerProvider(), shutdown: func(context.Context) error { return nil }}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp", "":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithTimeout(cfg.Timeout),
		)
	default:
		return nil, fmt.Errorf("observability: unknown tracing exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("observability: create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{provider: provider, shutdown: provider.Shutdown}, nil
}

// Tracer returns a named tracer handle for starting spans.
func (t *Tracer) Tracer(name string) trace.Tracer {
	return t.provider.Tracer(name)
}

// Shutdown flushes and closes the exporter. Safe to call on a disabled
// (no-op) Tracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
