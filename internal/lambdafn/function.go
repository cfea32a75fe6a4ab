package lambdafn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
)

type Ingester interface {
	Handle(ctx context.Context) (record.Record, error)
}

type Function struct {
	ingester Ingester
}

func New(ingester Ingester) *Function {
	return &Function{ingester: ingester}
}

// Invoke ignores the gateway event. Failures are returned to the runtime,
// which reports them to the gateway as a failed integration.
func (f *Function) Invoke(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	rec, err := f.ingester.Handle(ctx)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("encode record: %w", err)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

// Start hands the instrumented handler to the Lambda runtime. It does not
// return.
func (f *Function) Start(opts ...otellambda.Option) {
	lambda.Start(otellambda.InstrumentHandler(f.Invoke, opts...))
}
