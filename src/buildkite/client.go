// Package buildkite provides a client for interacting with the Buildkite API.
package buildkite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"buildwatch/src/provider"
)

const (
	// APIBaseURL is the base URL for the Buildkite API.
	APIBaseURL = "https://api.buildkite.com/v2"

	// MaxPageSize is the largest per_page value the builds endpoints accept.
	MaxPageSize = 100

	// maxErrorBody bounds how much of an error response is kept for diagnostics.
	maxErrorBody = 512
)

// Client is a Buildkite API client.
type Client struct {
	apiToken   string
	httpClient *http.Client
	baseURL    string
}

// User is the /user response.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Build represents a Buildkite build.
type Build struct {
	ID         string     `json:"id"`
	Number     int        `json:"number"`
	State      string     `json:"state"`
	WebURL     string     `json:"web_url"`
	Branch     string     `json:"branch"`
	Message    string     `json:"message"`
	Commit     string     `json:"commit"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Pipeline   *Pipeline  `json:"pipeline"`
	Jobs       []Job      `json:"jobs"`
}

// Pipeline is the pipeline summary embedded in a build.
type Pipeline struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Job represents a Buildkite job within a build.
type Job struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	State      string `json:"state"`
	ExitStatus *int   `json:"exit_status"`
	WebURL     string `json:"web_url"`
}

// NewClient creates a new Buildkite API client.
func NewClient(apiToken string) *Client {
	return &Client{
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: APIBaseURL,
	}
}

// WithBaseURL points the client at another API root (used by tests and proxies).
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// GetCurrentUser fetches the user that owns the API token.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, c.baseURL+"/user", provider.KindInvalidResponse, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, provider.NewError(provider.KindInvalidResponse, errors.New("user response has no id"))
	}
	return &user, nil
}

// ListUserBuilds fetches the most recent builds created by a user across an organization.
func (c *Client) ListUserBuilds(ctx context.Context, org, userID string, perPage int) ([]Build, error) {
	if perPage <= 0 || perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	query := url.Values{}
	query.Set("creator", userID)
	query.Set("per_page", strconv.Itoa(perPage))
	endpoint := fmt.Sprintf("%s/organizations/%s/builds?%s", c.baseURL, url.PathEscape(org), query.Encode())

	var builds []Build
	if err := c.getJSON(ctx, endpoint, provider.KindOrganizationNotFound, &builds); err != nil {
		return nil, err
	}
	return builds, nil
}

// GetBuild fetches a build's metadata from the Buildkite API.
func (c *Client) GetBuild(ctx context.Context, org, pipeline string, buildNumber int) (*Build, error) {
	endpoint := fmt.Sprintf("%s/organizations/%s/pipelines/%s/builds/%d",
		c.baseURL, url.PathEscape(org), url.PathEscape(pipeline), buildNumber)

	var build Build
	if err := c.getJSON(ctx, endpoint, provider.KindBuildNotFound, &build); err != nil {
		return nil, err
	}
	return &build, nil
}

// getJSON performs an authenticated GET and decodes the body into out.
// notFound is the kind reported for a 404 on this endpoint.
func (c *Client) getJSON(ctx context.Context, endpoint string, notFound provider.ErrorKind, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return provider.NewError(provider.KindUnknown, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.NewError(provider.KindNetwork, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, notFound)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.NewError(provider.KindDecoding, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// statusError classifies a non-200 response.
func statusError(resp *http.Response, notFound provider.ErrorKind) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return provider.NewStatusError(provider.KindUnauthorized, resp.StatusCode, cause)
	case http.StatusNotFound:
		return provider.NewStatusError(notFound, resp.StatusCode, cause)
	case http.StatusTooManyRequests:
		e := provider.NewStatusError(provider.KindRateLimited, resp.StatusCode, cause)
		e.RetryAfter = retryAfter(resp.Header)
		return e
	}
	return provider.NewStatusError(provider.KindInvalidResponse, resp.StatusCode, cause)
}

// retryAfter reads Buildkite's RateLimit-Reset (seconds until reset) or the
// standard Retry-After header.
func retryAfter(h http.Header) time.Duration {
	for _, name := range []string{"RateLimit-Reset", "Retry-After"} {
		if v := h.Get(name); v != "" {
			if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return 0
}
