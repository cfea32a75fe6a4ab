package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	lambdadetector "go.opentelemetry.io/contrib/detectors/aws/lambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/config"
)

const (
	defaultCollectorEndpoint = "localhost:4318"
	defaultAgentEndpoint     = "localhost:4317"
	xrayTraceEnv             = "_X_AMZN_TRACE_ID"
	xrayTraceHeader          = "X-Amzn-Trace-Id"
)

type Config struct {
	Profile     string
	ServiceName string
	// OTLPEndpoint is host:port or a full URL. The agent and collector
	// profiles fall back to the layer's collector on localhost; the manual
	// profile falls back to stdout.
	OTLPEndpoint string
	// Writer receives stdout exports. Defaults to os.Stdout.
	Writer         io.Writer
	MetricInterval time.Duration
	Logger         *slog.Logger
}

type Telemetry struct {
	Profile        string
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Propagator     propagation.TextMapPropagator

	lambdaOptions []otellambda.Option
}

// Init builds the tracer and meter providers for one instrumentation profile
// and installs them as the otel globals.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = 15 * time.Second
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	var telemetry *Telemetry
	switch cfg.Profile {
	case config.ProfileAgent:
		telemetry, err = initAgent(ctx, cfg, res)
	case config.ProfileCollector:
		telemetry, err = initCollector(ctx, cfg, res)
	case config.ProfileManual:
		telemetry, err = initManual(ctx, cfg, res)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProfile, cfg.Profile)
	}
	if err != nil {
		return nil, err
	}
	telemetry.Profile = cfg.Profile

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
	if err != nil {
		_ = telemetry.TracerProvider.Shutdown(ctx)
		return nil, err
	}
	telemetry.MeterProvider = metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(cfg.MetricInterval))),
		metric.WithResource(res),
	)

	telemetry.lambdaOptions = append(telemetry.lambdaOptions, otellambda.WithFlusher(telemetry))

	otel.SetTracerProvider(telemetry.TracerProvider)
	otel.SetMeterProvider(telemetry.MeterProvider)
	otel.SetTextMapPropagator(telemetry.Propagator)

	return telemetry, nil
}

// initAgent mirrors the agent layer's recommended setup: X-Ray ids and
// propagation, Lambda resource, OTLP/gRPC to the collector the layer runs.
// Outside Lambda the resource falls back to the service attributes.
func initAgent(ctx context.Context, cfg Config, res *resource.Resource) (*Telemetry, error) {
	res = withLambdaResource(ctx, res, cfg.Logger)

	endpoint := cfg.OTLPEndpoint
	if endpoint == "" {
		endpoint = defaultAgentEndpoint
	}
	exporter, err := newGRPCExporter(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("agent exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithIDGenerator(xray.NewIDGenerator()),
		trace.WithResource(res),
	)
	propagator := xray.Propagator{}
	return &Telemetry{
		TracerProvider: tp,
		Propagator:     propagator,
		lambdaOptions: []otellambda.Option{
			otellambda.WithTracerProvider(tp),
			otellambda.WithPropagator(propagator),
			otellambda.WithEventToCarrier(xrayEventToCarrier),
		},
	}, nil
}

// xrayEventToCarrier reads the trace header the Lambda runtime exports for
// the current invocation instead of the event payload.
func xrayEventToCarrier([]byte) propagation.TextMapCarrier {
	return propagation.HeaderCarrier{xrayTraceHeader: []string{os.Getenv(xrayTraceEnv)}}
}

func newGRPCExporter(ctx context.Context, endpoint string) (trace.SpanExporter, error) {
	var opts []otlptracegrpc.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracegrpc.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func initCollector(ctx context.Context, cfg Config, res *resource.Resource) (*Telemetry, error) {
	endpoint := cfg.OTLPEndpoint
	if endpoint == "" {
		endpoint = defaultCollectorEndpoint
	}

	var opts []otlptracehttp.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("collector exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	return &Telemetry{
		TracerProvider: tp,
		Propagator:     propagator,
		lambdaOptions: []otellambda.Option{
			otellambda.WithTracerProvider(tp),
			otellambda.WithPropagator(propagator),
		},
	}, nil
}

// initManual bootstraps everything in-process. Spans are exported
// synchronously since the runtime may freeze the process between
// invocations.
func initManual(ctx context.Context, cfg Config, res *resource.Resource) (*Telemetry, error) {
	res = withLambdaResource(ctx, res, cfg.Logger)

	var exporter trace.SpanExporter
	var err error
	if cfg.OTLPEndpoint != "" {
		exporter, err = newGRPCExporter(ctx, cfg.OTLPEndpoint)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(cfg.Writer))
	}
	if err != nil {
		return nil, fmt.Errorf("manual exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithSpanProcessor(trace.NewSimpleSpanProcessor(exporter)),
		trace.WithResource(res),
	)
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	return &Telemetry{
		TracerProvider: tp,
		Propagator:     propagator,
		lambdaOptions: []otellambda.Option{
			otellambda.WithTracerProvider(tp),
			otellambda.WithPropagator(propagator),
		},
	}, nil
}

func withLambdaResource(ctx context.Context, base *resource.Resource, logger *slog.Logger) *resource.Resource {
	lambdaResource, err := lambdadetector.NewResourceDetector().Detect(ctx)
	if err != nil {
		logger.DebugContext(ctx, "skipping lambda resource", slog.String("error", err.Error()))
		return base
	}
	merged, err := resource.Merge(lambdaResource, base)
	if err != nil {
		logger.WarnContext(ctx, "skipping lambda resource", slog.String("error", err.Error()))
		return base
	}
	return merged
}

// LambdaOptions are the otellambda options matching the profile.
func (t *Telemetry) LambdaOptions() []otellambda.Option {
	return append([]otellambda.Option(nil), t.lambdaOptions...)
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// ForceFlush pushes pending spans and metrics before the runtime freezes the
// process.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	return errors.Join(t.TracerProvider.ForceFlush(ctx), t.MeterProvider.ForceFlush(ctx))
}
