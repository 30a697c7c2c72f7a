package model

// Provider identifies the source-control system hosting a project.
type Provider string

const (
	ProviderGitLab Provider = "gitlab"
	ProviderGitHub Provider = "github"
)

// Project is a source-control project watched on behalf of a team.
type Project struct {
	Name       string   // Display name used in notifications.
	Provider   Provider // Which fetcher serves this project.
	ID         string   // GitLab numeric ID or path; GitHub "owner/repo".
	Credential string   // Provider access token.
}

// Team groups projects that share a notification endpoint and threshold policy.
type Team struct {
	Name       string
	WebhookURL string
	Thresholds ThresholdConfig
	Projects   []Project
}

// Catalog is the validated, read-only configuration for a run: every team,
// the global handle-to-mention mapping, and the shared filter and tier rules.
type Catalog struct {
	Teams      []Team
	Identities map[string]string // Provider handle -> chat mention.
	Filters    FilterRules
	Tiers      TierPolicy
}

// Team returns the team with the given name, or nil.
func (c *Catalog) Team(name string) *Team {
	for i := range c.Teams {
		if c.Teams[i].Name == name {
			return &c.Teams[i]
		}
	}
	return nil
}
