// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/bosstimeline/internal/adapters/repository"
	service "github.com/okian/bosstimeline/internal/app"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Reconcile runs the pipeline for one boss.
	Reconcile(ctx context.Context, req service.Request) (service.Response, error)

	// Read operations expose stored timelines.
	Timeline(ctx context.Context, boss string) (repository.Timeline, error)
	Recent(ctx context.Context, n int) ([]repository.Summary, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	timelinesHandler *TimelinesHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// page size of GET /timelines.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		timelinesHandler: NewTimelinesHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/timelines", MetricsMiddleware(s.timelinesHandler.HandleTimelines, "timelines"))
	mux.HandleFunc("/timelines/", MetricsMiddleware(s.timelinesHandler.HandleGetTimeline, "timeline"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
