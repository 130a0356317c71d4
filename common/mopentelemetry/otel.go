// Package mopentelemetry wires a process-wide tracer provider and offers the span
// helpers used by command handlers, the command bus, and the replay engine.
package mopentelemetry

import (
	"context"
	"log"

	"github.com/harborgrid-justin/cadcore/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the process tracer provider.
type Telemetry struct {
	LibraryName               string
	ServiceName               string
	ServiceVersion            string
	DeploymentEnv             string
	CollectorExporterEndpoint string
	EnableTelemetry           bool
	TracerProvider            *sdktrace.TracerProvider
	shutdown                  func()
}

func (tl *Telemetry) newResource() (*sdkresource.Resource, error) {
	return sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(tl.ServiceName),
			semconv.ServiceVersion(tl.ServiceVersion),
			semconv.DeploymentEnvironment(tl.DeploymentEnv)),
	)
}

func (tl *Telemetry) newTracerExporter(ctx context.Context) (*otlptrace.Exporter, error) {
	return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(tl.CollectorExporterEndpoint), otlptracegrpc.WithInsecure())
}

// ShutdownTelemetry flushes and stops the tracer provider.
func (tl *Telemetry) ShutdownTelemetry() {
	if tl.shutdown != nil {
		tl.shutdown()
	}
}

// InitializeTelemetry sets up the global tracer provider. When EnableTelemetry is false
// it installs a no-op provider so Tracer() calls remain cheap.
func (tl *Telemetry) InitializeTelemetry() *Telemetry {
	if !tl.EnableTelemetry {
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
		return &Telemetry{LibraryName: tl.LibraryName, shutdown: func() {}}
	}

	ctx := context.Background()

	r, err := tl.newResource()
	if err != nil {
		log.Fatalf("can't initialize telemetry resource: %v", err)
	}

	tExp, err := tl.newTracerExporter(ctx)
	if err != nil {
		log.Fatalf("can't initialize tracer exporter: %v", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(tExp), sdktrace.WithResource(r))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	tl.TracerProvider = tp
	tl.shutdown = func() {
		if err := tExp.Shutdown(ctx); err != nil {
			log.Printf("shutting down tracer exporter: %v", err)
		}

		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("shutting down tracer provider: %v", err)
		}
	}

	return &Telemetry{LibraryName: tl.LibraryName, TracerProvider: tp, shutdown: tl.shutdown}
}

// SetSpanAttributesFromStruct serializes a struct to JSON and attaches it as a span attribute.
func SetSpanAttributesFromStruct(span *trace.Span, key string, valueStruct any) error {
	vStr, err := common.StructToJSONString(valueStruct)
	if err != nil {
		return err
	}

	(*span).SetAttributes(attribute.KeyValue{Key: attribute.Key(key), Value: attribute.StringValue(vStr)})

	return nil
}

// HandleSpanError records an error on the span and sets its status to Error.
func HandleSpanError(span *trace.Span, message string, err error) {
	(*span).SetStatus(codes.Error, message+": "+err.Error())
	(*span).RecordError(err)
}
