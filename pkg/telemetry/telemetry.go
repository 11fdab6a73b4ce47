// Package telemetry installs the OpenTelemetry tracer provider used by the
// network proxy and the task tracker. Without Setup, the global no-op
// provider is in effect and spans cost nothing.
package telemetry

import (
	"context"
	"fmt"

	"github.com/waftester/scanhost/pkg/defaults"
	"github.com/waftester/scanhost/pkg/duration"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InstrumentationName is the tracer name shared by all scanhost packages.
const InstrumentationName = "github.com/waftester/scanhost"

// Options configures the OTLP exporter.
type Options struct {
	// Endpoint is the OTLP gRPC endpoint (default: "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "scanhost").
	ServiceName string

	// Insecure uses a plaintext connection.
	Insecure bool

	// Headers are sent with every export request.
	Headers map[string]string
}

// Provider owns the SDK tracer provider installed as the global one.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup connects an OTLP gRPC exporter and installs a batching tracer
// provider globally.
func Setup(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = defaults.OTelEndpoint
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(ctx, duration.TelemetryConnect)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	return install(sdktrace.WithBatcher(exporter), opts.ServiceName), nil
}

// SetupWithExporter installs a provider that exports synchronously to exp.
// Tests use it with an in-memory exporter.
func SetupWithExporter(exp sdktrace.SpanExporter) *Provider {
	return install(sdktrace.WithSyncer(exp), "")
}

func install(processor sdktrace.TracerProviderOption, serviceName string) *Provider {
	if serviceName == "" {
		serviceName = defaults.ToolName
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "plugin-host"),
	)

	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	return nil
}

// Tracer returns the scanhost tracer from the current global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
