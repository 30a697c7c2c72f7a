package model

import "time"

// OutcomeStatus is the result of one team's pipeline within a run.
type OutcomeStatus string

const (
	OutcomeDelivered  OutcomeStatus = "delivered"
	OutcomeNoStale    OutcomeStatus = "no_stale"
	OutcomeSuppressed OutcomeStatus = "suppressed" // Non-working day; nothing sent.
	OutcomeDryRun     OutcomeStatus = "dry_run"
	OutcomeFailed     OutcomeStatus = "failed"
)

// FailureKind classifies an external call failure for operators.
type FailureKind string

const (
	FailureUnauthorized FailureKind = "unauthorized"
	FailureNotFound     FailureKind = "not_found"
	FailureRateLimited  FailureKind = "rate_limited"
	FailureNetwork      FailureKind = "network"
	FailureOther        FailureKind = "other"
)

// ProjectFailure records a project that could not be fetched.
type ProjectFailure struct {
	Project string      `json:"project"`
	Kind    FailureKind `json:"kind"`
	Error   string      `json:"error"`
}

// TeamOutcome is what happened to one team during a run.
type TeamOutcome struct {
	Team            string
	Status          OutcomeStatus
	Report          TeamReport
	Message         *RenderedMessage // Set when a message was rendered.
	ProjectFailures []ProjectFailure
	Filtered        int // Requests removed by the filter.
	Dropped         int // Requests dropped because they could not be classified.
	Error           string
}

// RunResult is the operator-facing output of one invocation.
type RunResult struct {
	ID         string
	Now        time.Time // Logical time supplied by the caller.
	StartedAt  time.Time
	FinishedAt time.Time
	Suppressed bool
	DryRun     bool
	Teams      []TeamOutcome
}

// FailedTeams returns the number of teams whose outcome is OutcomeFailed.
func (r RunResult) FailedTeams() int {
	n := 0
	for _, t := range r.Teams {
		if t.Status == OutcomeFailed {
			n++
		}
	}
	return n
}

// RunSummary is the stored header of a past run.
type RunSummary struct {
	ID          string
	LogicalDate time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Suppressed  bool
	DryRun      bool
	TeamCount   int
	FailedCount int
}

// OutcomeRecord is the stored form of a TeamOutcome.
type OutcomeRecord struct {
	Team            string
	Status          OutcomeStatus
	StaleCount      int
	Error           string
	ProjectFailures []ProjectFailure
}

// RunRecord is a stored run with its team outcomes.
type RunRecord struct {
	RunSummary
	Outcomes []OutcomeRecord
}
