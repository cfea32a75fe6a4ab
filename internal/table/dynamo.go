package table

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
)

var ErrNoTableName = errors.New("table name is required")

type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type DynamoConfig struct {
	TableName string
	Region    string
	// Endpoint overrides the service endpoint, e.g. a local DynamoDB.
	Endpoint string
}

type DynamoTable struct {
	name   string
	client PutItemAPI
}

// NewDynamoTable loads the default AWS credential chain once; the returned
// table is meant to live for the whole process.
func NewDynamoTable(ctx context.Context, cfg DynamoConfig) (*DynamoTable, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, ErrNoTableName
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoTableWithClient(cfg.TableName, client), nil
}

func NewDynamoTableWithClient(name string, client PutItemAPI) *DynamoTable {
	return &DynamoTable{name: name, client: client}
}

func (t *DynamoTable) Name() string {
	return t.name
}

func (t *DynamoTable) Put(ctx context.Context, rec record.Record) error {
	item, err := attributevalue.MarshalMap(map[string]any(rec))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item into %s: %w", t.name, err)
	}
	return nil
}
