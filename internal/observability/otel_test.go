package observability

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/config"
)

func shutdown(t *testing.T, telemetry *Telemetry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = telemetry.Shutdown(ctx)
}

func TestInitManualExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	telemetry, err := Init(context.Background(), Config{
		Profile:     config.ProfileManual,
		ServiceName: "ingest-manual",
		Writer:      &buf,
	})
	require.NoError(t, err)
	defer shutdown(t, telemetry)

	_, span := otel.Tracer("test").Start(context.Background(), "manual.span")
	span.End()

	assert.Contains(t, buf.String(), "manual.span")
	assert.Contains(t, buf.String(), "ingest-manual")
	assert.NotEmpty(t, telemetry.LambdaOptions())
	assert.Same(t, telemetry.TracerProvider, otel.GetTracerProvider())
}

func TestInitCollectorUsesW3CPropagation(t *testing.T) {
	telemetry, err := Init(context.Background(), Config{
		Profile:      config.ProfileCollector,
		ServiceName:  "ingest-collector",
		OTLPEndpoint: "http://127.0.0.1:4318",
		Writer:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	defer shutdown(t, telemetry)

	assert.Contains(t, telemetry.Propagator.Fields(), "traceparent")
	assert.Len(t, telemetry.LambdaOptions(), 3)
}

func TestInitAgentOutsideLambda(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")

	telemetry, err := Init(context.Background(), Config{
		Profile:     config.ProfileAgent,
		ServiceName: "ingest-agent",
		Writer:      &bytes.Buffer{},
	})
	require.NoError(t, err)
	defer shutdown(t, telemetry)

	assert.Equal(t, xray.Propagator{}, telemetry.Propagator)
	assert.Len(t, telemetry.LambdaOptions(), 4)

	_, span := otel.Tracer("test").Start(context.Background(), "agent.span")
	span.End()
	// X-Ray trace ids lead with the epoch seconds of the trace start
	traceID := span.SpanContext().TraceID().String()
	epoch, err := strconv.ParseInt(traceID[:8], 16, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), epoch, 60)
}

func TestXRayEventToCarrierReadsRuntimeHeader(t *testing.T) {
	header := "Root=1-5759e988-bd862e3fe1be46a994272793;Parent=53995c3f42cd8ad8;Sampled=1"
	t.Setenv("_X_AMZN_TRACE_ID", header)

	carrier := xrayEventToCarrier([]byte(`{"path": "/agent"}`))
	assert.Equal(t, header, carrier.Get("X-Amzn-Trace-Id"))
}

func TestForceFlushExportsMetricsForEveryProfile(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")

	for _, profile := range config.Profiles() {
		t.Run(profile, func(t *testing.T) {
			var buf bytes.Buffer
			telemetry, err := Init(context.Background(), Config{
				Profile:        profile,
				ServiceName:    "ingest-" + profile,
				Writer:         &buf,
				MetricInterval: time.Hour,
			})
			require.NoError(t, err)
			defer shutdown(t, telemetry)

			counter, err := otel.Meter("test").Int64Counter("ingest.invocations")
			require.NoError(t, err)
			counter.Add(context.Background(), 1)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			require.NoError(t, telemetry.ForceFlush(ctx))
			assert.Contains(t, buf.String(), "ingest.invocations")
		})
	}
}

func TestInitRejectsUnknownProfile(t *testing.T) {
	_, err := Init(context.Background(), Config{Profile: "sidecar"})
	assert.ErrorIs(t, err, config.ErrUnknownProfile)
}
