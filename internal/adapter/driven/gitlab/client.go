// Package gitlab implements the ReviewRequestFetcher port for GitLab merge
// requests over the REST v4 API.
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReviewRequestFetcher = (*Client)(nil)

const pageSize = 100

// HTTPClient is the subset of *http.Client the adapter needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches open merge requests from a GitLab instance. The access
// token is supplied per call, so one Client serves every project.
type Client struct {
	baseURL     string
	httpClient  HTTPClient
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewClient creates a GitLab client for baseURL (e.g. https://gitlab.com).
// A nil httpClient gets an ETag-aware caching transport.
func NewClient(baseURL string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: httpcache.NewMemoryCacheTransport()}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     slog.Default(),
	}
}

// WithCallTimeout bounds every single HTTP call, including each approvals
// lookup, by d. Zero leaves calls bounded only by the caller's context.
func (c *Client) WithCallTimeout(d time.Duration) *Client {
	c.callTimeout = d
	return c
}

// ListOpenRequests returns every open merge request of the project together
// with its approval state. projectID is a numeric ID or a "group/project" path.
// A rejected approvals lookup counts as not approved; one that times out or
// cannot reach the server fails the whole project.
func (c *Client) ListOpenRequests(ctx context.Context, projectID, credential string) ([]model.ReviewRequest, error) {
	project := url.PathEscape(projectID)
	requests := []model.ReviewRequest{}

	for page := 1; page > 0; {
		endpoint := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests?state=opened&per_page=%d&page=%d",
			c.baseURL, project, pageSize, page)

		var mrs []mergeRequest
		header, err := c.doRequest(ctx, endpoint, credential, &mrs)
		if err != nil {
			return nil, fmt.Errorf("listing merge requests for %s (page %d): %w", projectID, page, err)
		}

		for _, mr := range mrs {
			req := c.convertMergeRequest(mr, projectID)

			approvedBy, err := c.approvals(ctx, project, mr.IID, credential)
			if err != nil {
				if ctx.Err() != nil || driven.IsUnavailable(err) {
					return nil, fmt.Errorf("fetching approvals for %s!%d: %w", projectID, mr.IID, err)
				}
				c.logger.Warn("failed to fetch approval status, treating as not approved",
					"project", projectID, "mr_iid", mr.IID, "error", err)
			}
			req.ApprovalCount = approvedBy
			req.Approved = approvedBy > 0

			requests = append(requests, req)
		}

		page = nextPage(header)
	}

	return requests, nil
}

// approvals returns how many users approved the merge request.
func (c *Client) approvals(ctx context.Context, project string, iid int, credential string) (int, error) {
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d/approvals", c.baseURL, project, iid)

	var resp approvalState
	if _, err := c.doRequest(ctx, endpoint, credential, &resp); err != nil {
		return 0, err
	}
	return len(resp.ApprovedBy), nil
}

// doRequest performs an authenticated GET and decodes the JSON body into result.
func (c *Client) doRequest(ctx context.Context, endpoint, credential string, result any) (http.Header, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("PRIVATE-TOKEN", credential)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", driven.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, statusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: reading response: %w", driven.ErrNetwork, ctxErr)
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return resp.Header, nil
}

func statusError(status int, body string) error {
	err := fmt.Errorf("API returned status %d: %s", status, body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Join(driven.ErrUnauthorized, err)
	case http.StatusNotFound:
		return errors.Join(driven.ErrNotFound, err)
	case http.StatusTooManyRequests:
		return errors.Join(driven.ErrRateLimited, err)
	default:
		return err
	}
}

// convertMergeRequest converts a GitLab merge request to the domain model.
// An unparseable created_at leaves CreatedAt zero so the classifier drops it.
func (c *Client) convertMergeRequest(mr mergeRequest, projectID string) model.ReviewRequest {
	created, err := time.Parse(time.RFC3339, mr.CreatedAt)
	if err != nil {
		c.logger.Warn("merge request has invalid created_at",
			"project", projectID, "mr_iid", mr.IID, "created_at", mr.CreatedAt)
		created = time.Time{}
	}

	labels := mr.Labels
	if labels == nil {
		labels = []string{}
	}

	return model.ReviewRequest{
		ID:          mr.IID,
		Title:       mr.Title,
		Description: mr.Description,
		URL:         mr.WebURL,
		Author:      mr.Author.Username,
		Reviewers:   usernames(mr.Reviewers),
		Assignees:   usernames(mr.Assignees),
		Labels:      labels,
		CreatedAt:   created,
		Draft:       mr.Draft || mr.WorkInProgress,
		TicketKey:   model.ExtractTicketKey(mr.Title, mr.Description),
	}
}

func usernames(users []gitlabUser) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

// nextPage parses the X-Next-Page header; 0 means there are no more pages.
func nextPage(h http.Header) int {
	n, err := strconv.Atoi(h.Get("X-Next-Page"))
	if err != nil {
		return 0
	}
	return n
}

// GitLab API response types
type gitlabUser struct {
	Username string `json:"username"`
}

type mergeRequest struct {
	IID            int          `json:"iid"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	WebURL         string       `json:"web_url"`
	Author         gitlabUser   `json:"author"`
	Reviewers      []gitlabUser `json:"reviewers"`
	Assignees      []gitlabUser `json:"assignees"`
	Labels         []string     `json:"labels"`
	CreatedAt      string       `json:"created_at"`
	Draft          bool         `json:"draft"`
	WorkInProgress bool         `json:"work_in_progress"`
}

type approvalState struct {
	ApprovedBy []struct {
		User gitlabUser `json:"user"`
	} `json:"approved_by"`
}
