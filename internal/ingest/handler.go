package ingest

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/table"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/upstream"
)

const instrumentationName = "ingest"

type Fetcher interface {
	FetchUser(ctx context.Context, id int) (map[string]any, error)
	FetchComments(ctx context.Context) (any, error)
}

type Options struct {
	Fetcher Fetcher
	Table   table.Writer
	// Auxiliary issues the comments fetch; its result is never used.
	Auxiliary bool
	Profile   string
	Logger    *slog.Logger

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	NewID        func() (string, error)
	RandomUserID func() int
}

// Handler turns one invocation into one persisted record. It holds no
// per-invocation state and is safe for concurrent use.
type Handler struct {
	fetcher   Fetcher
	table     table.Writer
	auxiliary bool
	profile   string
	logger    *slog.Logger
	tracer    trace.Tracer

	invocations metric.Int64Counter
	duration    metric.Int64Histogram

	newID        func() (string, error)
	randomUserID func() int
}

func NewHandler(opts Options) *Handler {
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		fetcher:      opts.Fetcher,
		table:        opts.Table,
		auxiliary:    opts.Auxiliary,
		profile:      opts.Profile,
		logger:       logger.With("component", instrumentationName, "profile", opts.Profile),
		tracer:       tp.Tracer(instrumentationName),
		newID:        opts.NewID,
		randomUserID: opts.RandomUserID,
	}
	if h.newID == nil {
		h.newID = record.NewID
	}
	if h.randomUserID == nil {
		h.randomUserID = upstream.RandomUserID
	}

	meter := mp.Meter(instrumentationName)
	var err error
	if h.invocations, err = meter.Int64Counter("ingest.invocations"); err != nil {
		otel.Handle(err)
	}
	if h.duration, err = meter.Int64Histogram("ingest.duration", metric.WithUnit("ms")); err != nil {
		otel.Handle(err)
	}
	return h
}

// Handle runs fetch, optional auxiliary fetch, id generation, merge and put in
// that order. Any failure aborts the invocation and is returned as is.
func (h *Handler) Handle(ctx context.Context) (rec record.Record, err error) {
	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "ingest.handle")
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			h.logger.ErrorContext(ctx, "invocation failed", slog.String("error", err.Error()))
		}
		attrs := metric.WithAttributes(
			attribute.String("ingest.profile", h.profile),
			attribute.String("ingest.outcome", outcome),
		)
		h.invocations.Add(ctx, 1, attrs)
		h.duration.Record(ctx, time.Since(start).Milliseconds(), attrs)
		span.End()
	}()

	userID := h.randomUserID()
	span.SetAttributes(
		attribute.Int("ingest.user_id", userID),
		attribute.Bool("ingest.auxiliary", h.auxiliary),
	)

	fetched, err := h.fetchUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if h.auxiliary {
		if err := h.fetchComments(ctx); err != nil {
			return nil, err
		}
	}

	id, err := h.newID()
	if err != nil {
		return nil, err
	}
	rec = record.Merge(fetched, id)
	span.SetAttributes(attribute.String("ingest.record_id", id))

	if err := h.put(ctx, rec); err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "record stored",
		slog.String("record_id", id),
		slog.Int("user_id", userID),
		slog.Int("fields", len(rec)),
	)
	return rec, nil
}

func (h *Handler) fetchUser(ctx context.Context, userID int) (map[string]any, error) {
	ctx, span := h.tracer.Start(ctx, "ingest.fetch_user")
	defer span.End()
	span.SetAttributes(attribute.Int("ingest.user_id", userID))

	user, err := h.fetcher.FetchUser(ctx, userID)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	return user, nil
}

func (h *Handler) fetchComments(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "ingest.fetch_comments")
	defer span.End()

	if _, err := h.fetcher.FetchComments(ctx); err != nil {
		failSpan(span, err)
		return err
	}
	return nil
}

func (h *Handler) put(ctx context.Context, rec record.Record) error {
	ctx, span := h.tracer.Start(ctx, "ingest.put_record")
	defer span.End()
	span.SetAttributes(attribute.String("ingest.record_id", rec.ID()))

	if err := h.table.Put(ctx, rec); err != nil {
		failSpan(span, err)
		return err
	}
	return nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
