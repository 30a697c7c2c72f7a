// Package config loads process-wide settings from environment variables and
// the team catalog from a YAML document.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingEnv is returned by Load when a required variable is unset or empty.
var ErrMissingEnv = errors.New("missing required environment variable")

// Config holds the application configuration loaded from environment variables.
type Config struct {
	TeamsFile string

	JiraURL      string
	JiraUsername string
	JiraToken    string

	GitLabURL    string
	GitLabToken  string // Fallback credential for GitLab projects.
	GitHubToken  string // Fallback credential for GitHub projects.
	GitHubAPIURL string // Empty means api.github.com.

	Location       *time.Location
	NonWorkingDays string // Comma-separated weekday names.
	CallTimeout    time.Duration
	RunTimeout     time.Duration
	Concurrency    int

	DBPath     string // Empty disables run history.
	ListenAddr string
	DryRun     bool
}

// HasRunHistory returns true when a run history database is configured.
func (c *Config) HasRunHistory() bool {
	return c.DBPath != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// JIRA_URL, JIRA_USERNAME and JIRA_TOKEN are required.
// Optional variables with defaults: REVIEWNUDGE_TEAMS_FILE (teams.yaml),
// GITLAB_URL (https://gitlab.com), REVIEWNUDGE_TIMEZONE (UTC),
// REVIEWNUDGE_NON_WORKING_DAYS (saturday,sunday), REVIEWNUDGE_CALL_TIMEOUT (15s),
// REVIEWNUDGE_RUN_TIMEOUT (5m), REVIEWNUDGE_CONCURRENCY (4),
// REVIEWNUDGE_LISTEN_ADDR (127.0.0.1:8080), REVIEWNUDGE_DRY_RUN (false).
func Load() (*Config, error) {
	var missing []string
	required := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		JiraURL:      strings.TrimSuffix(required("JIRA_URL"), "/"),
		JiraUsername: required("JIRA_USERNAME"),
		JiraToken:    required("JIRA_TOKEN"),
		GitLabToken:  os.Getenv("GITLAB_TOKEN"),
		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		GitHubAPIURL: os.Getenv("GITHUB_API_URL"),
		DBPath:       os.Getenv("REVIEWNUDGE_DB_PATH"),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	cfg.TeamsFile = envOr("REVIEWNUDGE_TEAMS_FILE", "teams.yaml")
	cfg.GitLabURL = strings.TrimSuffix(envOr("GITLAB_URL", "https://gitlab.com"), "/")
	cfg.NonWorkingDays = envOr("REVIEWNUDGE_NON_WORKING_DAYS", "saturday,sunday")
	cfg.ListenAddr = envOr("REVIEWNUDGE_LISTEN_ADDR", "127.0.0.1:8080")

	tz := envOr("REVIEWNUDGE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("REVIEWNUDGE_TIMEZONE has invalid time zone %q: %w", tz, err)
	}
	cfg.Location = loc

	if cfg.CallTimeout, err = durationEnv("REVIEWNUDGE_CALL_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = durationEnv("REVIEWNUDGE_RUN_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.Concurrency = 4
	if v, ok := os.LookupEnv("REVIEWNUDGE_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("REVIEWNUDGE_CONCURRENCY must be a positive integer, got %q", v)
		}
		cfg.Concurrency = n
	}

	if v, ok := os.LookupEnv("REVIEWNUDGE_DRY_RUN"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("REVIEWNUDGE_DRY_RUN has invalid boolean %q: %w", v, err)
		}
		cfg.DryRun = b
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
