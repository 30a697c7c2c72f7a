package model

// FilterRules controls which review requests are dropped as noise before
// classification. Keyword matching is case-insensitive substring containment.
type FilterRules struct {
	ExcludeBots         bool
	ExcludeDependencies bool
	ExcludeDrafts       bool
	ExcludeApproved     bool
	BotKeywords         []string // Matched against author handle and title.
	DependencyKeywords  []string // Matched against title and labels.
}

// DefaultBotKeywords are author/title fragments that identify automated requests.
var DefaultBotKeywords = []string{
	"dependabot", "renovate", "greenkeeper", "snyk", "whitesource",
	"github-actions", "gitlab-ci", "automated", "bot", "dependency",
	"dependent_pat", "dependencybot", "auto-update",
}

// DefaultDependencyKeywords are title/label fragments that identify dependency bumps.
var DefaultDependencyKeywords = []string{
	"build(deps)", "build(deps-dev)", "chore(deps)", "deps:",
	"bump ", "update dependencies", "upgrade dependencies",
	"security update", "npm audit fix", "yarn upgrade",
	"pip upgrade", "requirements update", "package update",
	"version bump", "dependency update", "auto-update",
	"automated update", "[security]", "security patch",
}

// DefaultFilterRules returns rules with every exclusion enabled and the
// default keyword lists.
func DefaultFilterRules() FilterRules {
	return FilterRules{
		ExcludeBots:         true,
		ExcludeDependencies: true,
		ExcludeDrafts:       true,
		ExcludeApproved:     true,
		BotKeywords:         append([]string(nil), DefaultBotKeywords...),
		DependencyKeywords:  append([]string(nil), DefaultDependencyKeywords...),
	}
}
