package application

import "github.com/ericfisherdev/reviewnudge/internal/domain/model"

// Aggregate builds a team report from per-project classifications. Only stale
// requests are kept, projects stay in input order, and projects without stale
// requests are left out of the sections but still counted as 0.
func Aggregate(team string, projects []model.ProjectClassification) model.TeamReport {
	report := model.TeamReport{
		Team: team,
		Summary: model.ReportSummary{
			PerProject: make(map[string]int, len(projects)),
		},
	}

	sum := 0
	for _, p := range projects {
		var stale []model.ClassifiedRequest
		for _, c := range p.Requests {
			if !c.Stale {
				continue
			}
			stale = append(stale, c)
			sum += c.AgeDays
			if c.AgeDays > report.Summary.OldestAge || report.Summary.Total+len(stale) == 1 {
				report.Summary.OldestAge = c.AgeDays
				report.Summary.OldestProject = p.Project
			}
		}

		report.Summary.PerProject[p.Project] += len(stale)
		if len(stale) == 0 {
			continue
		}
		report.Summary.Total += len(stale)
		report.Projects = append(report.Projects, model.ProjectReport{Name: p.Project, Requests: stale})
	}

	report.Summary.MeanAge = roundedMean(sum, report.Summary.Total)
	return report
}

// roundedMean returns sum/n rounded half up, or 0 when n is 0.
func roundedMean(sum, n int) int {
	if n == 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}
