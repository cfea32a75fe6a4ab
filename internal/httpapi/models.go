package httpapi

import (
	"strconv"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/record"
)

type errorResponse struct {
	Error string `json:"error"`
}

type recordsResponse struct {
	Records []record.Record `json:"records"`
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
