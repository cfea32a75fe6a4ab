package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
)

const serviceTraceName = "httpapi"

var (
	durationOnce      sync.Once
	durationHistogram metric.Int64Histogram
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), r)
	defer span.End()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	s.logRequest(ctx, r, http.StatusOK, "health check")
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if s.records == nil {
		writeJSON(w, http.StatusOK, recordsResponse{Records: []record.Record{}})
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 50)
	writeJSON(w, http.StatusOK, recordsResponse{Records: s.records.List(limit)})
}

// handleIngest maps a failed invocation to 502, the generic answer a gateway
// gives when its integration fails.
func (s *Server) handleIngest(profile string, ingester Ingester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := startSpan(r.Context(), r)
		defer span.End()
		span.SetAttributes(attribute.String("ingest.profile", profile))

		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			s.logRequest(ctx, r, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		rec, err := ingester.Handle(ctx)
		status := http.StatusOK
		if err != nil {
			status = http.StatusBadGateway
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
		} else {
			span.SetAttributes(attribute.String("ingest.record_id", rec.ID()))
			writeJSON(w, status, rec)
		}

		recordMetrics(ctx, r.URL.Path, time.Since(start).Milliseconds(), status)
		s.logRequest(ctx, r, status, "ingest invocation",
			slog.String("profile", profile),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func startSpan(ctx context.Context, r *http.Request) (context.Context, trace.Span) {
	propagator := otel.GetTextMapPropagator()
	ctx = propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
	tracer := otel.Tracer(serviceTraceName)
	ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.route", r.URL.Path),
	)
	return ctx, span
}

func (s *Server) logRequest(ctx context.Context, r *http.Request, status int, message string, attrs ...any) {
	args := append([]any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
	}, attrs...)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, message, args...)
}

func recordMetrics(ctx context.Context, path string, durationMs int64, status int) {
	duration := getDurationHistogram()
	duration.Record(ctx, durationMs,
		metric.WithAttributes(
			attribute.String("http.route", path),
			attribute.Int("http.status_code", status),
		),
	)
}

func getDurationHistogram() metric.Int64Histogram {
	durationOnce.Do(func() {
		meter := otel.Meter(serviceTraceName)
		histogram, _ := meter.Int64Histogram("http.server.duration", metric.WithUnit("ms"))
		durationHistogram = histogram
	})
	return durationHistogram
}
