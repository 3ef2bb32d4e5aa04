// Package telemetry wires the optional OpenTelemetry trace pipeline. Tracing
// is off unless an OTLP endpoint is configured in the environment, so the
// server runs with zero telemetry overhead by default.
package telemetry

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	endpointEnv   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	sampleRateEnv = "OTEL_TRACE_SAMPLE_RATE"

	// defaultSampleRate keeps trace volume low on a busy library server;
	// override per deployment via OTEL_TRACE_SAMPLE_RATE.
	defaultSampleRate = 0.1

	setupTimeout  = 5 * time.Second
	exportTimeout = 3 * time.Second
)

func noopShutdown(context.Context) error { return nil }

// Init installs the global trace provider when an OTLP endpoint is set and
// returns its shutdown hook. Without an endpoint, or when the exporter cannot
// be built, the server keeps running untraced and the hook is a no-op.
func Init(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	endpoint := strings.TrimSpace(os.Getenv(endpointEnv))
	if endpoint == "" {
		return noopShutdown, nil
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")

	initCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	exporter, err := otlptracehttp.New(initCtx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(exportTimeout),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		// An unreachable collector must not block startup.
		return noopShutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate()))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// sampleRate reads OTEL_TRACE_SAMPLE_RATE, falling back to the default when
// unset or outside [0,1].
func sampleRate() float64 {
	raw := strings.TrimSpace(os.Getenv(sampleRateEnv))
	if raw == "" {
		return defaultSampleRate
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate < 0 || rate > 1 {
		return defaultSampleRate
	}
	return rate
}
