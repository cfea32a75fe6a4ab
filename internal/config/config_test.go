package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TABLE_NAME", "INSTRUMENTATION_PROFILE", "SERVICE_NAME", "OTEL_SERVICE_NAME",
		"AWS_LAMBDA_FUNCTION_NAME", "AUXILIARY_FETCH", "UPSTREAM_BASE_URL", "HTTP_TIMEOUT",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "AWS_REGION", "DYNAMODB_ENDPOINT", "PORT",
		"RATE_LIMIT_PER_MIN", "LOG_LEVEL", "LOG_FORMAT", "AWS_LAMBDA_RUNTIME_API",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProfileManual, cfg.Profile)
	assert.Equal(t, "ingest-manual", cfg.ServiceName)
	assert.False(t, cfg.AuxiliaryFetch)
	assert.Equal(t, "https://jsonplaceholder.typicode.com", cfg.UpstreamURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.False(t, cfg.InLambda())
}

func TestLoadCollectorEnablesAuxiliaryFetch(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTRUMENTATION_PROFILE", "Collector")
	t.Setenv("TABLE_NAME", "records")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProfileCollector, cfg.Profile)
	assert.True(t, cfg.AuxiliaryFetch)
	assert.Equal(t, "records", cfg.TableName)
}

func TestLoadExplicitOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTRUMENTATION_PROFILE", "agent")
	t.Setenv("AUXILIARY_FETCH", "true")
	t.Setenv("OTEL_SERVICE_NAME", "orders-agent")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.AuxiliaryFetch)
	assert.Equal(t, "orders-agent", cfg.ServiceName)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30, cfg.RateLimit)
	assert.True(t, cfg.InLambda())
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTRUMENTATION_PROFILE", "sidecar")

	_, err := Load()
	assert.ErrorIs(t, err, ErrUnknownProfile)
}
