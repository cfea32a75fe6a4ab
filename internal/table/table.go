package table

import (
	"context"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
)

// Writer persists a record with an unconditional upsert keyed by id.
type Writer interface {
	Put(ctx context.Context, rec record.Record) error
}
