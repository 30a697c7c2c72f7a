// Package jira implements the TicketProvider port against the Jira REST v2 API.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TicketProvider = (*Client)(nil)

// Client looks up Jira issues with basic authentication.
type Client struct {
	baseURL    string
	username   string
	token      string
	httpClient *http.Client
}

// NewClient creates a Jira client. A nil httpClient gets an ETag-aware
// caching transport.
func NewClient(baseURL, username, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: httpcache.NewMemoryCacheTransport()}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		token:      token,
		httpClient: httpClient,
	}
}

// Lookup fetches the status and priority of the issue with the given key.
func (c *Client) Lookup(ctx context.Context, key string) (*model.TicketInfo, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=status,priority", c.baseURL, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching issue %s: %w: %w", key, driven.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("fetching issue %s: %w", key, driven.ErrUnauthorized)
	case http.StatusNotFound:
		return nil, fmt.Errorf("fetching issue %s: %w", key, driven.ErrNotFound)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetching issue %s: %w", key, driven.ErrRateLimited)
	default:
		return nil, fmt.Errorf("fetching issue %s: unexpected status %d", key, resp.StatusCode)
	}

	var issue issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, fmt.Errorf("decoding issue %s: %w", key, err)
	}
	if issue.Key == "" {
		return nil, errors.New("issue response has no key")
	}

	info := &model.TicketInfo{
		Key:      issue.Key,
		Status:   issue.Fields.Status.Name,
		Priority: model.PriorityUnknown,
	}
	if issue.Fields.Priority != nil {
		info.Priority = model.ParsePriority(issue.Fields.Priority.Name)
	}
	return info, nil
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
	} `json:"fields"`
}
