package model

// ProjectClassification carries every classified request of one project, in
// the order the project appears in its team.
type ProjectClassification struct {
	Project  string
	Requests []ClassifiedRequest
}

// ProjectReport lists the stale requests of one project.
type ProjectReport struct {
	Name     string
	Requests []ClassifiedRequest
}

// ReportSummary holds the statistics of a team report. Ages are in days.
type ReportSummary struct {
	Total         int
	OldestAge     int
	OldestProject string
	MeanAge       int
	PerProject    map[string]int
}

// TeamReport is the per-team aggregation of stale review requests.
type TeamReport struct {
	Team     string
	Projects []ProjectReport // Only projects with at least one stale request.
	Summary  ReportSummary
}

// Empty reports whether the report contains no stale requests.
func (r TeamReport) Empty() bool {
	return r.Summary.Total == 0
}
