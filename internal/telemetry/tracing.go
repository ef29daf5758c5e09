package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope for every span.
const TracerName = "logtriage"

// Tracing holds the tracer handed to components and the shutdown hook that
// flushes exported spans.
type Tracing struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Shutdown flushes and closes the exporter. It is safe on a no-op Tracing.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// InitTracing returns a no-op tracer when traceFile is empty. Otherwise
// spans are written as JSON to traceFile, which is truncated.
func InitTracing(ctx context.Context, traceFile, runID, version string) (*Tracing, error) {
	if traceFile == "" {
		return &Tracing{Tracer: nooptrace.NewTracerProvider().Tracer(TracerName)}, nil
	}

	f, err := os.Create(traceFile)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", TracerName),
		attribute.String("service.version", version),
		attribute.String("logtriage.run_id", runID),
	))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &Tracing{
		Tracer: tp.Tracer(TracerName),
		shutdown: func(ctx context.Context) error {
			terr := tp.Shutdown(ctx)
			ferr := f.Close()
			if terr != nil {
				return terr
			}
			return ferr
		},
	}, nil
}
