package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider wraps an OpenTelemetry tracer provider with the sampling and
// resource-attribution conventions this service deploys under (Lambda, ECS or
// a bare process).
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	ServiceName string
	Environment string
	Endpoint    string
	SampleRate  float64
	EnableXRay  bool
	EnableDebug bool
}

// InitTracing initializes distributed tracing with enhanced configuration.
func InitTracing(config TracingConfig) (*TracerProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "syncdal"
	}
	if config.SampleRate == 0 {
		config.SampleRate = getSampleRate(config.Environment)
	}

	exporter, err := createExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := createResource(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := createSampler(config)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithRawSpanLimits(sdktrace.SpanLimits{
			AttributeCountLimit:         128,
			EventCountLimit:             128,
			LinkCountLimit:              128,
			AttributePerEventCountLimit: 32,
			AttributePerLinkCountLimit:  32,
		}),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(createPropagator(config))

	if config.EnableDebug {
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
			fmt.Printf("OpenTelemetry error: %v\n", err)
		}))
	}

	return &TracerProvider{
		provider: tp,
		tracer:   tp.Tracer(config.ServiceName),
		config:   config,
	}, nil
}

func createExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	if config.EnableXRay || os.Getenv("_X_AMZN_TRACE_ID") != "" {
		return createXRayExporter()
	}
	return createOTLPExporter(config.Endpoint)
}

func createOTLPExporter(endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
	}

	if endpoint == "localhost:4317" || endpoint == "127.0.0.1:4317" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	return otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(opts...),
	)
}

func createXRayExporter() (sdktrace.SpanExporter, error) {
	// The ADOT Lambda layer exposes an OTLP endpoint on localhost:4317.
	return createOTLPExporter("localhost:4317")
}

func createResource(config TracingConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(getServiceVersion()),
		attribute.String("deployment.environment", config.Environment),
		attribute.String("cloud.provider", "aws"),
		attribute.String("cloud.platform", getPlatform()),
	}

	if functionName := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); functionName != "" {
		attrs = append(attrs,
			attribute.String("faas.name", functionName),
			attribute.String("faas.version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")),
			attribute.String("cloud.region", os.Getenv("AWS_REGION")),
		)
	}

	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(hostname))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

func createSampler(config TracingConfig) sdktrace.Sampler {
	switch config.Environment {
	case "production":
		return sdktrace.TraceIDRatioBased(config.SampleRate)
	case "staging":
		return sdktrace.TraceIDRatioBased(0.1)
	default:
		return sdktrace.AlwaysSample()
	}
}

func createPropagator(config TracingConfig) propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func getSampleRate(environment string) float64 {
	switch environment {
	case "production":
		return 0.01
	case "staging":
		return 0.1
	default:
		return 1.0
	}
}

func getServiceVersion() string {
	if version := os.Getenv("SERVICE_VERSION"); version != "" {
		return version
	}
	return "unknown"
}

func getPlatform() string {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return "aws_lambda"
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" {
		return "aws_ecs"
	}
	return "unknown"
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartSpan starts a new span under this provider's tracer.
func (tp *TracerProvider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, name, opts...)
}

// StartRequestSpan starts the span covering one caller request from Manager
// submission through Dispatch Queue routing to adapter completion.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, kind string, op string, callerID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dal.manager."+op,
		trace.WithAttributes(
			attribute.String("dal.kind", kind),
			attribute.String("dal.operation", op),
			attribute.String("dal.caller_id", callerID),
		),
	)
}

// StartAdapterSpan starts a child span for a single adapter's half of a
// dispatched request, used under all-write/all-read replication where one
// intake fans out to several adapters.
func StartAdapterSpan(ctx context.Context, tracer trace.Tracer, adapterKind string, op string, intakeID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dal.adapter."+op,
		trace.WithAttributes(
			attribute.String("dal.adapter_kind", adapterKind),
			attribute.String("dal.operation", op),
			attribute.String("dal.intake_id", intakeID),
		),
	)
}
