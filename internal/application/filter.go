// Package application contains use-case orchestration services.
package application

import (
	"strings"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// ExclusionPredicate decides whether a review request is noise under the given rules.
type ExclusionPredicate struct {
	Name    string
	Matches func(req model.ReviewRequest, rules model.FilterRules) bool
}

// draftTitlePrefixes mark a request as a draft even when the provider flag is unset.
var draftTitlePrefixes = []string{"draft:", "wip:", "[draft]", "[wip]"}

// ExclusionPredicates is the ordered list of checks applied by FilterRequests.
// A request is excluded when any predicate matches.
var ExclusionPredicates = []ExclusionPredicate{
	{Name: "draft", Matches: isExcludedDraft},
	{Name: "approved", Matches: isExcludedApproved},
	{Name: "bot_author", Matches: isBotAuthored},
	{Name: "dependency_update", Matches: isDependencyUpdate},
}

func isExcludedDraft(req model.ReviewRequest, rules model.FilterRules) bool {
	if !rules.ExcludeDrafts {
		return false
	}
	if req.Draft {
		return true
	}
	title := strings.ToLower(strings.TrimSpace(req.Title))
	for _, prefix := range draftTitlePrefixes {
		if strings.HasPrefix(title, prefix) {
			return true
		}
	}
	return false
}

func isExcludedApproved(req model.ReviewRequest, rules model.FilterRules) bool {
	return rules.ExcludeApproved && req.Approved
}

func isBotAuthored(req model.ReviewRequest, rules model.FilterRules) bool {
	if !rules.ExcludeBots {
		return false
	}
	return containsAny(req.Author, rules.BotKeywords) || containsAny(req.Title, rules.BotKeywords)
}

func isDependencyUpdate(req model.ReviewRequest, rules model.FilterRules) bool {
	if !rules.ExcludeDependencies {
		return false
	}
	if containsAny(req.Title, rules.DependencyKeywords) {
		return true
	}
	for _, label := range req.Labels {
		if containsAny(label, rules.DependencyKeywords) {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains any keyword, ignoring case.
// Empty keywords never match.
func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ExclusionReason returns the name of the first predicate that excludes req,
// or "" when the request survives.
func ExclusionReason(req model.ReviewRequest, rules model.FilterRules) string {
	for _, p := range ExclusionPredicates {
		if p.Matches(req, rules) {
			return p.Name
		}
	}
	return ""
}

// FilterRequests returns the requests that no exclusion predicate matches,
// preserving input order. The input slice is not modified.
func FilterRequests(requests []model.ReviewRequest, rules model.FilterRules) []model.ReviewRequest {
	kept := make([]model.ReviewRequest, 0, len(requests))
	for _, req := range requests {
		if ExclusionReason(req, rules) == "" {
			kept = append(kept, req)
		}
	}
	return kept
}
