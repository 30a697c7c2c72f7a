// Package web implements the HTML preview driving adapter using templ components.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/reviewnudge/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/reviewnudge/internal/adapter/driving/web/templates/pages"
	"github.com/ericfisherdev/reviewnudge/internal/application"
	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// Runner executes the reminder pipeline.
type Runner interface {
	Run(ctx context.Context, req application.RunRequest) (*model.RunResult, error)
}

// Handler is the web driving adapter that renders dry-run previews.
type Handler struct {
	runner   Runner
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(runner Runner, location *time.Location, logger *slog.Logger) *Handler {
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		runner:   runner,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// Preview runs the pipeline without delivering or recording anything and
// renders every team's message as HTML. Query parameter: now.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	req := application.RunRequest{Now: h.now(), DryRun: true, SkipHistory: true}

	if v := r.URL.Query().Get("now"); v != "" {
		now, err := application.ParseLogicalTime(v, h.location)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Now = now
	}

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.logger.Error("preview run failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	page := toPreviewPageViewModel(result, h.location)
	layout := templates.Layout(page.Title, pages.Preview(page))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layout.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render preview", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
