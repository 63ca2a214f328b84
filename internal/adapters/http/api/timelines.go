package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/bosstimeline/internal/adapters/repository"
	"github.com/okian/bosstimeline/internal/adapters/source"
	service "github.com/okian/bosstimeline/internal/app"
	"github.com/okian/bosstimeline/internal/domain/model"
	"github.com/okian/bosstimeline/internal/domain/types"
)

const (
	maxBodyBytes = 64 << 20
	defaultLimit = 10
)

// reconcileRequest mirrors the OpenAPI schema for POST /timelines.
type reconcileRequest struct {
	Boss string `json:"boss"`
	// Reports use the exported report envelope. When empty, reports are
	// listed from the configured log source.
	Reports []source.ReportJSON `json:"reports"`
	// Script is scripted timeline text. When absent it is read from the
	// configured script source; an empty string disables sync.
	Script     *string `json:"script"`
	Reference  string  `json:"reference"`
	Anchor     string  `json:"anchor"`
	Strategy   string  `json:"strategy"`
	PhaseAware *bool   `json:"phase_aware"`
}

func (req *reconcileRequest) toService() (service.Request, error) {
	out := service.Request{
		Boss:       strings.TrimSpace(req.Boss),
		Reference:  req.Reference,
		Anchor:     req.Anchor,
		Strategy:   req.Strategy,
		PhaseAware: req.PhaseAware,
	}
	if out.Boss == "" {
		return out, errors.New("missing boss")
	}
	for i := range req.Reports {
		r, err := req.Reports[i].Report()
		if err != nil {
			return out, err
		}
		out.Reports = append(out.Reports, r)
	}
	if req.Script != nil {
		entries, err := source.ParseTimeline(strings.NewReader(*req.Script))
		if err != nil {
			return out, err
		}
		if entries == nil {
			entries = []model.ScriptEntry{}
		}
		out.Script = entries
	}
	return out, nil
}

type timelineResponse struct {
	RunID       string                  `json:"run_id"`
	Boss        string                  `json:"boss"`
	StoredAt    *time.Time              `json:"stored_at,omitempty"`
	Actions     []types.TimelineRecord  `json:"actions"`
	Mappings    []types.MappingRecord   `json:"mappings,omitempty"`
	Diagnostics types.DiagnosticsRecord `json:"diagnostics"`
}

type summaryResponse struct {
	Rank     int       `json:"rank"`
	Boss     string    `json:"boss"`
	RunID    string    `json:"run_id"`
	StoredAt time.Time `json:"stored_at"`
	Actions  int       `json:"actions"`
	Degraded bool      `json:"degraded"`
}

// TimelinesHandler handles reconcile and timeline read requests.
type TimelinesHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewTimelinesHandler creates a new timelines handler.
func NewTimelinesHandler(deps Dependencies, maxLimit int) *TimelinesHandler {
	if maxLimit < 1 {
		maxLimit = defaultLimit
	}
	return &TimelinesHandler{deps: deps, maxLimit: maxLimit}
}

// HandleTimelines handles POST /timelines (reconcile) and
// GET /timelines?limit=N (most recent runs).
func (h *TimelinesHandler) HandleTimelines(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleReconcile(w, r)
	case http.MethodGet:
		h.handleRecent(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *TimelinesHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_timelines"
	var body reconcileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", wrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	resp, err := h.deps.Reconcile(r.Context(), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, timelineResponse{
		RunID:       resp.RunID,
		Boss:        resp.Boss,
		Actions:     types.FromActions(resp.Actions),
		Mappings:    types.FromMappings(resp.Mappings),
		Diagnostics: types.FromDiagnostics(&resp.Diagnostics),
	})
}

func (h *TimelinesHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_timelines"
	n := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, nil))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", wrapKind(op, ErrLimitExceeds, nil))
		return
	}

	summaries, err := h.deps.Recent(r.Context(), n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	out := make([]summaryResponse, len(summaries))
	for i, s := range summaries {
		out[i] = summaryResponse{
			Rank:     s.Rank,
			Boss:     s.Boss,
			RunID:    s.RunID,
			StoredAt: s.StoredAt,
			Actions:  s.Actions,
			Degraded: s.Degraded,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetTimeline handles GET /timelines/{boss} requests.
func (h *TimelinesHandler) HandleGetTimeline(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_timeline"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	boss := strings.TrimPrefix(r.URL.Path, "/timelines/")
	if boss == "" || strings.Contains(boss, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, nil))
		return
	}

	tl, err := h.deps.Timeline(r.Context(), boss)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, timelineResponse{
		RunID:       tl.RunID,
		Boss:        tl.Boss,
		StoredAt:    &tl.StoredAt,
		Actions:     types.FromActions(tl.Actions),
		Diagnostics: types.FromDiagnostics(&tl.Diagnostics),
	})
}

// writeServiceError translates service and store errors into responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, repository.ErrInvalidBoss):
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", wrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", wrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", wrapKind(op, ErrInternal, err))
	}
}
