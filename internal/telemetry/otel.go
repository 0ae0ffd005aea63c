package telemetry

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
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig holds OpenTelemetry tracing configuration for the control
// plane.
type TraceConfig struct {
	ServiceName       string
	ServiceVersion    string
	Environment       string
	CollectorEndpoint string
	CollectorInsecure bool
	SamplingRate      float64
}

// DefaultTraceConfig returns development-friendly defaults.
func DefaultTraceConfig(serviceName string) *TraceConfig {
	return &TraceConfig{
		ServiceName:       serviceName,
		ServiceVersion:    "0.1.0",
		Environment:       "development",
		CollectorEndpoint: "localhost:4317",
		CollectorInsecure: true,
		SamplingRate:      1.0,
	}
}

// InitTracer wires an OTLP gRPC exporter and installs it as the global
// tracer provider.
func InitTracer(ctx context.Context, config *TraceConfig) (*sdktrace.TracerProvider, error) {
	if config == nil {
		config = DefaultTraceConfig("idp-controlplane")
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(config.CollectorEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxQueueSize(2048),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown flushes and closes the tracer provider.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return tp.Shutdown(ctx)
}

// StartSpan starts a span with the given name and attributes.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// RecordError marks a span as failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Attribute keys used across placement spans.
const (
	AttrProduct    = attribute.Key("idp.product")
	AttrCell       = attribute.Key("idp.cell")
	AttrTier       = attribute.Key("idp.tier")
	AttrProvider   = attribute.Key("idp.provider")
	AttrRegion     = attribute.Key("idp.region")
	AttrExperiment = attribute.Key("idp.experiment_id")
	AttrArm        = attribute.Key("idp.experiment_arm")
	AttrSticky     = attribute.Key("idp.sticky_hit")
)

// PlacementAttributes builds the standard attribute set attached to a
// placement span.
func PlacementAttributes(product, cell, tier, provider, region string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrProduct.String(product),
		AttrCell.String(cell),
		AttrTier.String(tier),
		AttrProvider.String(provider),
		AttrRegion.String(region),
	}
}
