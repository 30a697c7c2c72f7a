// Package github implements the ReviewRequestFetcher port for GitHub pull
// requests using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReviewRequestFetcher = (*Client)(nil)

// Client implements the driven.ReviewRequestFetcher port for GitHub.
// Credentials are supplied per call, so one Client serves every project.
type Client struct {
	gh          *gh.Client
	callTimeout time.Duration
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client, token set per call)
//
// baseURL selects a GitHub Enterprise API root; empty means api.github.com.
func NewClient(baseURL string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)

	if baseURL != "" {
		if err := setBaseURL(client, baseURL); err != nil {
			return nil, err
		}
	}

	return &Client{gh: client}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)
	if err := setBaseURL(client, baseURL); err != nil {
		return nil, err
	}
	return &Client{gh: client}, nil
}

// WithCallTimeout bounds every single API call, including each review
// listing, by d. Zero leaves calls bounded only by the caller's context.
func (c *Client) WithCallTimeout(d time.Duration) *Client {
	c.callTimeout = d
	return c
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

func setBaseURL(client *gh.Client, baseURL string) error {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u
	return nil
}

// ListOpenRequests retrieves every open pull request of the "owner/repo"
// repository, together with its approval state. It handles pagination
// automatically and maps go-github types to domain model types. A rejected
// review listing counts as not approved; one that times out or cannot reach
// the API fails the whole repository.
func (c *Client) ListOpenRequests(ctx context.Context, projectID, credential string) ([]model.ReviewRequest, error) {
	owner, repo, err := splitRepo(projectID)
	if err != nil {
		return nil, err
	}

	client := c.gh
	if credential != "" {
		client = c.gh.WithAuthToken(credential)
	}

	opts := &gh.PullRequestListOptions{
		State:       "open",
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	requests := []model.ReviewRequest{}

	for {
		callCtx, cancel := c.callContext(ctx)
		prs, resp, err := client.PullRequests.List(callCtx, owner, repo, opts)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s (page %d): %w", projectID, opts.Page, mapError(resp, err))
		}

		logRateLimit(resp, projectID, opts.Page, len(prs))

		for _, pr := range prs {
			req := mapPullRequest(pr)

			approvals, err := c.countApprovals(ctx, client, owner, repo, pr.GetNumber())
			if err != nil {
				if ctx.Err() != nil || driven.IsUnavailable(err) {
					return nil, fmt.Errorf("fetching approvals for %s#%d: %w", projectID, pr.GetNumber(), err)
				}
				slog.Warn("failed to fetch approval status, treating as not approved",
					"repo", projectID, "pr_number", pr.GetNumber(), "error", err)
			}
			req.ApprovalCount = approvals
			req.Approved = approvals > 0

			requests = append(requests, req)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return requests, nil
}

// countApprovals returns the number of reviewers whose latest decisive review
// is an approval. Comment-only reviews do not change a reviewer's state.
func (c *Client) countApprovals(ctx context.Context, client *gh.Client, owner, repo string, number int) (int, error) {
	opts := &gh.ListOptions{PerPage: 100}
	latest := make(map[string]string)

	for {
		callCtx, cancel := c.callContext(ctx)
		reviews, resp, err := client.PullRequests.ListReviews(callCtx, owner, repo, number, opts)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("listing reviews for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, mapError(resp, err))
		}

		for _, r := range reviews {
			switch state := r.GetState(); state {
			case "APPROVED", "CHANGES_REQUESTED", "DISMISSED":
				latest[r.GetUser().GetLogin()] = state
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	approvals := 0
	for _, state := range latest {
		if state == "APPROVED" {
			approvals++
		}
	}
	return approvals, nil
}

// mapError wraps a go-github error with the matching driven sentinel.
func mapError(resp *gh.Response, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%w: %w", driven.ErrRateLimited, err)
	case resp == nil || resp.Response == nil:
		return fmt.Errorf("%w: %w", driven.ErrNetwork, err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", driven.ErrUnauthorized, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", driven.ErrNotFound, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", driven.ErrRateLimited, err)
	default:
		return err
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapPullRequest converts a go-github PullRequest to a domain ReviewRequest.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest) model.ReviewRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	reviewers := make([]string, 0, len(pr.RequestedReviewers))
	for _, r := range pr.RequestedReviewers {
		reviewers = append(reviewers, r.GetLogin())
	}

	assignees := make([]string, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		assignees = append(assignees, a.GetLogin())
	}

	return model.ReviewRequest{
		ID:          pr.GetNumber(),
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		URL:         pr.GetHTMLURL(),
		Author:      pr.GetUser().GetLogin(),
		Reviewers:   reviewers,
		Assignees:   assignees,
		Labels:      labels,
		CreatedAt:   pr.GetCreatedAt().Time,
		Draft:       pr.GetDraft(),
		TicketKey:   model.ExtractTicketKey(pr.GetTitle(), pr.GetBody()),
	}
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
