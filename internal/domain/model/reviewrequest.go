package model

import (
	"regexp"
	"time"
)

// ReviewRequest is an open merge/pull request as returned by a fetcher.
// It is built once per run and never mutated afterwards.
type ReviewRequest struct {
	ID            int // GitLab iid or GitHub number; unique within its project.
	Title         string
	Description   string
	URL           string
	Author        string   // Provider handle.
	Reviewers     []string // Provider handles, in provider order.
	Assignees     []string // Provider handles, in provider order.
	Labels        []string
	CreatedAt     time.Time // Zero when the provider omitted or mangled it.
	Draft         bool
	Approved      bool
	ApprovalCount int
	TicketKey     string // Linked issue key, empty when none was found.
}

// TicketInfo is the issue-tracker state of a linked ticket.
type TicketInfo struct {
	Key      string
	Status   string
	Priority Priority
}

var ticketKeyPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)

// ExtractTicketKey returns the first issue key found in the title, falling
// back to the description. Bracketed keys such as "[PROJ-1]" match too.
func ExtractTicketKey(title, description string) string {
	if m := ticketKeyPattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	if m := ticketKeyPattern.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	return ""
}
