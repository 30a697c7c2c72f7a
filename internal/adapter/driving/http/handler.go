package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ericfisherdev/reviewnudge/internal/application"
	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Runner executes the reminder pipeline.
type Runner interface {
	Run(ctx context.Context, req application.RunRequest) (*model.RunResult, error)
	Catalog() *model.Catalog
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	runner   Runner
	runStore driven.RunStore
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a Handler. runStore may be nil, in which case the run
// history endpoints answer 503.
func NewHandler(runner Runner, runStore driven.RunStore, location *time.Location, logger *slog.Logger) *Handler {
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		runner:   runner,
		runStore: runStore,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// NewRouter creates a chi router with request IDs, logging and recovery
// middleware installed. Routes are registered separately.
func NewRouter(logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(logger))
	// Recovery innermost so panics are caught before logging.
	r.Use(recoveryMiddleware(logger))
	return r
}

// RegisterAPIRoutes registers all REST API routes under /api/v1.
func RegisterAPIRoutes(r chi.Router, h *Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/teams", h.ListTeams)
		r.Post("/runs", h.TriggerRun)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
	})
}

// Health reports liveness plus a summary of what is configured.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Time:    formatTime(h.now()),
		Teams:   len(h.runner.Catalog().Teams),
		History: h.runStore != nil,
	})
}

// ListTeams returns the configured teams and their projects.
func (h *Handler) ListTeams(w http.ResponseWriter, _ *http.Request) {
	teams := h.runner.Catalog().Teams
	resp := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		resp = append(resp, toTeamResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// TriggerRun executes the pipeline once and returns the run result.
// Query parameters: dry_run (bool) and now (RFC 3339 or YYYY-MM-DD).
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	req := application.RunRequest{Now: h.now()}

	if v := r.URL.Query().Get("dry_run"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "dry_run must be a boolean")
			return
		}
		req.DryRun = dryRun
	}

	if v := r.URL.Query().Get("now"); v != "" {
		now, err := application.ParseLogicalTime(v, h.location)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Now = now
	}

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.logger.Error("run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(result))
}

// ListRuns returns recent runs, newest first. Query parameter: limit.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runStore == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.runStore.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunSummaryResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunSummaryResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns a single stored run with its team outcomes.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runStore == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	id := chi.URLParam(r, "id")

	record, err := h.runStore.GetRun(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if record == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, toRunRecordResponse(*record))
}
