// Package observability provides OpenTelemetry tracing for stackmesh.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name used for the stackmesh tracer.
	TracerName = "github.com/stackmesh/stackmesh"
)

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "stackmesh")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "stackmesh",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	// If no endpoint, return no-op tracer
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	// Create OTLP exporter
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	// Create resource with service info
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	// Create sampler
	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	// Create trace provider
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global provider and propagator
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// SpanKind constants for stackmesh operations.
const (
	SpanKindExtract   = "extract"
	SpanKindDetect    = "detect"
	SpanKindSchema    = "schema"
	SpanKindGraph     = "graph"
	SpanKindNormalize = "normalize"
)

// StartExtractSpan starts a span for a source extraction pass.
func StartExtractSpan(ctx context.Context, language string, fileCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, fmt.Sprintf("extract.%s", language),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stackmesh.span.kind", SpanKindExtract),
			attribute.String("extract.language", language),
			attribute.Int("extract.file_count", fileCount),
		),
	)
	return ctx, span
}

// RecordExtractResult records extraction counts on a span.
func RecordExtractResult(span trace.Span, callSites, routes, types int) {
	span.SetAttributes(
		attribute.Int("extract.call_sites", callSites),
		attribute.Int("extract.routes", routes),
		attribute.Int("extract.types", types),
	)
}

// StartDetectSpan starts a span for a relationship detection run.
func StartDetectSpan(ctx context.Context, callSites, routes int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "detect.relationships",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stackmesh.span.kind", SpanKindDetect),
			attribute.Int("detect.call_sites", callSites),
			attribute.Int("detect.routes", routes),
		),
	)
	return ctx, span
}

// RecordDetectResult records detection outcome on a span.
func RecordDetectResult(span trace.Span, relationships int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("detect.relationships", relationships),
		attribute.Int64("detect.duration_ms", duration.Milliseconds()),
	)
}

// StartSchemaSpan starts a span for a schema compatibility check.
func StartSchemaSpan(ctx context.Context, typeName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "schema.analyze",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stackmesh.span.kind", SpanKindSchema),
			attribute.String("schema.type", typeName),
		),
	)
	return ctx, span
}

// RecordSchemaResult records a compatibility verdict on a span.
func RecordSchemaResult(span trace.Span, compatible bool, score float64, mismatches int) {
	span.SetAttributes(
		attribute.Bool("schema.compatible", compatible),
		attribute.Float64("schema.score", score),
		attribute.Int("schema.mismatches", mismatches),
	)
	if !compatible {
		span.SetStatus(codes.Error, fmt.Sprintf("%d mismatches", mismatches))
	}
}

// StartGraphSpan starts a span for a graph persistence operation.
func StartGraphSpan(ctx context.Context, operation string, count int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, fmt.Sprintf("graph.%s", operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("stackmesh.span.kind", SpanKindGraph),
			attribute.Int("graph.count", count),
		),
	)
	return ctx, span
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
