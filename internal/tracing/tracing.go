// Package tracing wraps every stage of a generation job in an OpenTelemetry span
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/go-sif/atlasgen"

// Span attribute keys
const (
	StageIDKey          = attribute.Key("atlasgen.stage.id")
	StageDescriptionKey = attribute.Key("atlasgen.stage.description")
	JobIDKey            = attribute.Key("atlasgen.job.id")
)

// Config configures span export
type Config struct {
	Enabled     bool
	ServiceName string
	Writer      io.Writer // defaults to stdout
	PrettyPrint bool
}

// NewTracer returns a tracer exporting to the configured writer, and a function flushing and
// stopping the export. A disabled Config produces a no-op tracer.
func NewTracer(conf Config) (trace.Tracer, func(context.Context) error, error) {
	if !conf.Enabled {
		return noop.NewTracerProvider().Tracer(tracerName), func(context.Context) error { return nil }, nil
	}
	if len(conf.ServiceName) == 0 {
		conf.ServiceName = "atlasgen"
	}
	var opts []stdouttrace.Option
	if conf.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(conf.Writer))
	}
	if conf.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	res := resource.NewSchemaless(semconv.ServiceNameKey.String(conf.ServiceName))
	// stages are few and long, so spans are exported as soon as they end
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)
	return tp.Tracer(tracerName), tp.Shutdown, nil
}

// StartStage opens the span of a stage
func StartStage(ctx context.Context, tracer trace.Tracer, id string, description string) (context.Context, trace.Span) {
	return tracer.Start(ctx, id, trace.WithAttributes(
		StageIDKey.String(id),
		StageDescriptionKey.String(description),
	))
}

// EndStage closes the span of a stage, recording its outcome
func EndStage(span trace.Span, persisted int64, err error) {
	span.SetAttributes(attribute.Int64("atlasgen.stage.persisted", persisted))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
