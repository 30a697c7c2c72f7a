package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Time    string `json:"time"`
	Teams   int    `json:"teams"`
	History bool   `json:"history"`
}

// TeamResponse describes a configured team without its secrets.
type TeamResponse struct {
	Name        string            `json:"name"`
	StaleDays   int               `json:"stale_days"`
	UsePriority bool              `json:"use_priority"`
	Priorities  map[string]int    `json:"priorities"`
	Projects    []ProjectResponse `json:"projects"`
}

// ProjectResponse is a watched project, identified by provider and ID.
type ProjectResponse struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

// RunResponse is the JSON representation of a completed run.
type RunResponse struct {
	ID          string                `json:"id"`
	LogicalDate string                `json:"logical_date"`
	StartedAt   string                `json:"started_at"`
	FinishedAt  string                `json:"finished_at"`
	Suppressed  bool                  `json:"suppressed"`
	DryRun      bool                  `json:"dry_run"`
	FailedTeams int                   `json:"failed_teams"`
	Teams       []TeamOutcomeResponse `json:"teams"`
}

// TeamOutcomeResponse is one team's result within a run.
type TeamOutcomeResponse struct {
	Team            string                 `json:"team"`
	Status          string                 `json:"status"`
	StaleCount      int                    `json:"stale_count"`
	Filtered        int                    `json:"filtered"`
	Dropped         int                    `json:"dropped"`
	Error           string                 `json:"error,omitempty"`
	ProjectFailures []model.ProjectFailure `json:"project_failures"`
	Message         *MessageResponse       `json:"message,omitempty"`
}

// MessageResponse carries the rendered chat message of a team.
type MessageResponse struct {
	Text   string        `json:"text"`
	Blocks []model.Block `json:"blocks"`
}

// RunSummaryResponse is a stored run header.
type RunSummaryResponse struct {
	ID          string `json:"id"`
	LogicalDate string `json:"logical_date"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
	Suppressed  bool   `json:"suppressed"`
	DryRun      bool   `json:"dry_run"`
	TeamCount   int    `json:"team_count"`
	FailedCount int    `json:"failed_count"`
}

// RunRecordResponse is a stored run with its team outcomes.
type RunRecordResponse struct {
	RunSummaryResponse
	Teams []TeamOutcomeResponse `json:"teams"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nonNilFailures(f []model.ProjectFailure) []model.ProjectFailure {
	if f == nil {
		return []model.ProjectFailure{}
	}
	return f
}

// toRunResponse converts a RunResult to its JSON representation.
func toRunResponse(run *model.RunResult) RunResponse {
	teams := make([]TeamOutcomeResponse, 0, len(run.Teams))
	for _, o := range run.Teams {
		resp := TeamOutcomeResponse{
			Team:            o.Team,
			Status:          string(o.Status),
			StaleCount:      o.Report.Summary.Total,
			Filtered:        o.Filtered,
			Dropped:         o.Dropped,
			Error:           o.Error,
			ProjectFailures: nonNilFailures(o.ProjectFailures),
		}
		if o.Message != nil {
			resp.Message = &MessageResponse{Text: o.Message.Text, Blocks: o.Message.Blocks}
		}
		teams = append(teams, resp)
	}

	return RunResponse{
		ID:          run.ID,
		LogicalDate: formatTime(run.Now),
		StartedAt:   formatTime(run.StartedAt),
		FinishedAt:  formatTime(run.FinishedAt),
		Suppressed:  run.Suppressed,
		DryRun:      run.DryRun,
		FailedTeams: run.FailedTeams(),
		Teams:       teams,
	}
}

// toRunSummaryResponse converts a stored RunSummary to its JSON representation.
func toRunSummaryResponse(s model.RunSummary) RunSummaryResponse {
	return RunSummaryResponse{
		ID:          s.ID,
		LogicalDate: formatTime(s.LogicalDate),
		StartedAt:   formatTime(s.StartedAt),
		FinishedAt:  formatTime(s.FinishedAt),
		Suppressed:  s.Suppressed,
		DryRun:      s.DryRun,
		TeamCount:   s.TeamCount,
		FailedCount: s.FailedCount,
	}
}

// toRunRecordResponse converts a stored RunRecord to its JSON representation.
func toRunRecordResponse(r model.RunRecord) RunRecordResponse {
	teams := make([]TeamOutcomeResponse, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		teams = append(teams, TeamOutcomeResponse{
			Team:            o.Team,
			Status:          string(o.Status),
			StaleCount:      o.StaleCount,
			Error:           o.Error,
			ProjectFailures: nonNilFailures(o.ProjectFailures),
		})
	}

	return RunRecordResponse{
		RunSummaryResponse: toRunSummaryResponse(r.RunSummary),
		Teams:              teams,
	}
}

// toTeamResponse converts a catalog Team to its JSON representation.
// Credentials and webhook URLs are never exposed.
func toTeamResponse(t model.Team) TeamResponse {
	priorities := make(map[string]int, len(t.Thresholds.ByPriority))
	for p, days := range t.Thresholds.ByPriority {
		priorities[string(p)] = days
	}

	projects := make([]ProjectResponse, 0, len(t.Projects))
	for _, p := range t.Projects {
		projects = append(projects, ProjectResponse{
			Name:     p.Name,
			Provider: string(p.Provider),
			ID:       p.ID,
		})
	}

	return TeamResponse{
		Name:        t.Name,
		StaleDays:   t.Thresholds.StaleDays,
		UsePriority: t.Thresholds.UsePriority,
		Priorities:  priorities,
		Projects:    projects,
	}
}
