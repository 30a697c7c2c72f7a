package model

import "strings"

// Priority is the issue-tracker priority of a ticket linked to a review request.
type Priority string

const (
	PriorityHighest Priority = "highest"
	PriorityHigh    Priority = "high"
	PriorityMedium  Priority = "medium"
	PriorityLow     Priority = "low"
	PriorityLowest  Priority = "lowest"
	PriorityUnknown Priority = "unknown"
)

// AllPriorities lists the recognized priority levels, most urgent first.
var AllPriorities = []Priority{
	PriorityHighest,
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
	PriorityLowest,
}

// ParsePriority maps an issue-tracker priority name to a Priority.
// Matching is case-insensitive; unrecognized names yield PriorityUnknown.
func ParsePriority(name string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllPriorities {
		if p == known {
			return known
		}
	}
	return PriorityUnknown
}

// Known reports whether p is one of the five recognized levels.
func (p Priority) Known() bool {
	return ParsePriority(string(p)) != PriorityUnknown
}

// Title returns the display form of the priority, e.g. "High".
func (p Priority) Title() string {
	if p == "" {
		return "Unknown"
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}
