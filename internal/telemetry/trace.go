package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultServiceName = "storefront"

type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318.
	// Tracing is off when it is empty.
	Endpoint    string
	ServiceName string
	// SampleRatio in (0, 1]; 0 samples everything.
	SampleRatio float64
}

// SetupTracing installs the global tracer provider and the W3C trace context
// propagator. The returned shutdown flushes pending spans.
func SetupTracing(ctx context.Context, c TracingConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if c.Endpoint == "" {
		slog.InfoContext(ctx, "telemetry: tracing disabled, no endpoint configured")
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(c.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}

	name := c.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return noop, fmt.Errorf("resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(c.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	slog.InfoContext(ctx, fmt.Sprintf("telemetry: exporting traces to %s", c.Endpoint))
	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
