package web

import (
	"time"

	vm "github.com/ericfisherdev/reviewnudge/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// toPreviewPageViewModel converts a dry-run result into the preview page model.
// Times are shown in loc.
func toPreviewPageViewModel(result *model.RunResult, loc *time.Location) vm.PreviewPageViewModel {
	teams := make([]vm.TeamPreviewViewModel, 0, len(result.Teams))
	for _, o := range result.Teams {
		teams = append(teams, toTeamPreviewViewModel(o))
	}

	return vm.PreviewPageViewModel{
		Title:       "Review reminder preview",
		LogicalDate: result.Now.In(loc).Format("Mon 2006-01-02 15:04 MST"),
		Suppressed:  result.Suppressed,
		Teams:       teams,
	}
}

func toTeamPreviewViewModel(o model.TeamOutcome) vm.TeamPreviewViewModel {
	failures := make([]vm.FailureViewModel, 0, len(o.ProjectFailures))
	for _, f := range o.ProjectFailures {
		failures = append(failures, vm.FailureViewModel{
			Project: f.Project,
			Kind:    string(f.Kind),
			Error:   f.Error,
		})
	}

	team := vm.TeamPreviewViewModel{
		Name:        o.Team,
		Status:      statusLabel(o.Status),
		StatusClass: "status-" + string(o.Status),
		StaleCount:  o.Report.Summary.Total,
		Filtered:    o.Filtered,
		Dropped:     o.Dropped,
		Error:       o.Error,
		Failures:    failures,
	}
	if o.Message != nil {
		team.Message = RenderMessage(*o.Message)
	}
	return team
}

func statusLabel(s model.OutcomeStatus) string {
	switch s {
	case model.OutcomeDelivered:
		return "Delivered"
	case model.OutcomeNoStale:
		return "Nothing stale"
	case model.OutcomeSuppressed:
		return "Suppressed (non-working day)"
	case model.OutcomeDryRun:
		return "Would send"
	case model.OutcomeFailed:
		return "Failed"
	default:
		return string(s)
	}
}
