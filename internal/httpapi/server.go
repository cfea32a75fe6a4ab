package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/ratelimit"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/table"
)

type Ingester interface {
	Handle(ctx context.Context) (record.Record, error)
}

// Server emulates the API gateway locally: one POST route per profile, each
// backed by its own ingest handler.
type Server struct {
	limiter   *ratelimit.Limiter
	ingesters map[string]Ingester
	records   *table.MemoryTable
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewServer registers POST /{profile} for every ingester. records may be nil
// when the handlers write to a remote table.
func NewServer(limiter *ratelimit.Limiter, ingesters map[string]Ingester, records *table.MemoryTable, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	server := &Server{
		limiter:   limiter,
		ingesters: ingesters,
		records:   records,
		logger:    logger.With("component", serviceTraceName),
		mux:       http.NewServeMux(),
	}
	server.routes()
	return server
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/records", s.handleRecords)
	for profile, ingester := range s.ingesters {
		s.mux.Handle("/"+profile, s.handleIngest(profile, ingester))
	}
}

func (s *Server) Handler() http.Handler {
	if s.limiter == nil {
		return s.mux
	}
	return s.withRateLimit(s.mux)
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r), time.Now()) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
