package lambdafn

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
)

type ingesterFunc func(ctx context.Context) (record.Record, error)

func (f ingesterFunc) Handle(ctx context.Context) (record.Record, error) { return f(ctx) }

func TestInvokeReturnsRecordBody(t *testing.T) {
	fn := New(ingesterFunc(func(context.Context) (record.Record, error) {
		return record.Record{"id": "abc", "name": "Leanne"}, nil
	}))

	resp, err := fn.Invoke(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "POST", Path: "/manual"})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, map[string]any{"id": "abc", "name": "Leanne"}, body)
}

func TestInvokePropagatesFailure(t *testing.T) {
	unreachable := errors.New("table unreachable")
	fn := New(ingesterFunc(func(context.Context) (record.Record, error) {
		return nil, unreachable
	}))

	resp, err := fn.Invoke(context.Background(), events.APIGatewayProxyRequest{})
	require.ErrorIs(t, err, unreachable)
	assert.NotEqual(t, 200, resp.StatusCode)
}
