// Package routing serves the routing-summary API.
package routing

import (
	"context"
	"log/slog"
	"net/http"

	"notification-prep/internal/usecase/summary"
)

// Summarizer evaluates a summary request. *summary.Service satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, req summary.Request) ([]summary.Result, error)
}

// Register mounts the routing handlers on mux.
func Register(mux *http.ServeMux, svc Summarizer, logger *slog.Logger) {
	mux.Handle("POST /routing/summary", SummaryHandler{Svc: svc, Logger: logger})
}
