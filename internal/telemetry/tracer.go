// Package telemetry wires optional OpenTelemetry tracing into the Tool/
// Prompt Pipeline (the Task Manager's dispatch is not traced), mirroring the
// teacher's own span-per-call shape (internal/agent/loop_tracing.go emits
// an llm_call/tool_call/agent span per step) but backed by the real
// go.opentelemetry.io/otel SDK plus an OTLP/HTTP or OTLP/gRPC exporter
// instead of the teacher's Postgres-backed store.SpanData sink, since this
// server has no database of its own. Disabled by default; a nil *Tracer is
// always safe to use (every method degrades to a no-op span).
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config mirrors appconfig.TelemetryConfig; kept decoupled to avoid an
// import cycle between appconfig and telemetry.
type Config struct {
	Enabled     bool
	Endpoint    string
	Protocol    string
	ServiceName string
	Insecure    bool
}

// Tracer wraps a configured TracerProvider, or is nil when telemetry is
// disabled — every method on a nil *Tracer degrades to a no-op.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// Init builds a Tracer from cfg. A disabled config returns (nil, nil): the
// caller threads the nil Tracer through unconditionally.
func Init(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "guidemcp-gateway"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{provider: provider, tracer: provider.Tracer("guidemcp-gateway")}, nil
}

// newExporter picks the OTLP transport by cfg.Protocol. "grpc" uses the
// gRPC exporter (matches the teacher's collector deployments that front
// OTLP on 4317); anything else, including the default "http/protobuf",
// uses OTLP/HTTP.
func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Protocol == "grpc" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: build otlp/grpc exporter: %w", err)
		}
		return exporter, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build otlp/http exporter: %w", err)
	}
	return exporter, nil
}

// Shutdown flushes and stops the tracer provider. Safe to call on nil.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartPipelineSpan opens a span around one tool/prompt invocation. Safe
// to call on nil — returns ctx unchanged and a no-op end func.
func (t *Tracer) StartPipelineSpan(ctx context.Context, toolName string) (context.Context, func()) {
	if t == nil {
		return ctx, func() {}
	}
	spanCtx, span := t.tracer.Start(ctx, "pipeline.invoke", trace.WithAttributes(
		attribute.String("tool", toolName),
	))
	return spanCtx, func() { span.End() }
}

// StartDispatchSpan opens a child span around one subscriber's handling
// of a dispatched event. No caller in this repository uses it; the Task
// Manager's dispatch opens no spans.
func (t *Tracer) StartDispatchSpan(ctx context.Context, taskName, eventType string) (context.Context, func()) {
	if t == nil {
		return ctx, func() {}
	}
	spanCtx, span := t.tracer.Start(ctx, "taskmanager.dispatch", trace.WithAttributes(
		attribute.String("task", taskName),
		attribute.String("event_type", eventType),
	))
	return spanCtx, func() { span.End() }
}
