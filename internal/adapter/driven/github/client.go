// Package github reports run verdicts as GitHub commit statuses and reads the
// combined status back, using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.StatusNotifier = (*Client)(nil)
	_ driven.StatusReader   = (*Client)(nil)
)

// DefaultStatusContext labels statuses when no context is configured.
const DefaultStatusContext = "basic-ci"

const writeTimeout = 30 * time.Second

// Client implements driven.StatusNotifier and driven.StatusReader.
//
// Writes and reads use separate go-github clients. The writer sits on a plain
// transport so that Notify makes exactly one request; the reader goes through
// an ETag cache and the secondary rate limit middleware, which may sleep and
// retry.
type Client struct {
	writer        *gh.Client
	reader        *gh.Client
	statusContext string
}

// NewClient creates a Client authenticated with token. baseURL selects a
// GitHub Enterprise API root; empty means api.github.com. The reader uses the
// following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
func NewClient(token, statusContext, baseURL string) (*Client, error) {
	writer := gh.NewClient(&http.Client{Timeout: writeTimeout}).WithAuthToken(token)

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	reader := gh.NewClient(rateLimitClient).WithAuthToken(token)

	if baseURL != "" {
		u, err := parseBaseURL(baseURL)
		if err != nil {
			return nil, err
		}
		writer.BaseURL = u
		reader.BaseURL = u
	}

	return &Client{writer: writer, reader: reader, statusContext: orDefault(statusContext)}, nil
}

// NewClientWithHTTPClient creates a Client whose reader and writer both use
// httpClient and baseURL. It is intended for tests against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token, statusContext string) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	client.BaseURL = u

	return &Client{writer: client, reader: client, statusContext: orDefault(statusContext)}, nil
}

// Notify posts one commit status for result.CommitSHA. It is never retried.
func (c *Client) Notify(ctx context.Context, result model.RunResult) error {
	owner, repo, err := ParseRepoURL(result.RepositoryURL)
	if err != nil {
		return err
	}

	status := &gh.RepoStatus{
		State:       gh.Ptr(StatusState(result.Status)),
		Context:     gh.Ptr(c.statusContext),
		Description: gh.Ptr(StatusDescription(result)),
	}
	if result.DetailsURL != "" {
		status.TargetURL = gh.Ptr(result.DetailsURL)
	}

	u := fmt.Sprintf("repos/%s/%s/statuses/%s", owner, repo, url.PathEscape(result.CommitSHA))
	req, err := c.writer.NewRequest(http.MethodPost, u, status)
	if err != nil {
		return fmt.Errorf("building status request for %s/%s@%s: %w", owner, repo, result.CommitSHA, err)
	}

	var created gh.RepoStatus
	resp, err := c.writer.Do(ctx, req, &created)
	if err != nil {
		return fmt.Errorf("creating status for %s/%s@%s: %w", owner, repo, result.CommitSHA, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/statuses")
	slog.Info("commit status reported",
		"repo", owner+"/"+repo,
		"commit", result.CommitSHA,
		"state", created.GetState(),
		"context", c.statusContext,
	)

	return nil
}

// FetchCombinedStatus returns the combined commit status GitHub shows for
// commitSHA. Returns nil, nil if no statuses exist.
func (c *Client) FetchCombinedStatus(ctx context.Context, repoURL, commitSHA string) (*model.CombinedStatus, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	cs, resp, err := c.reader.Repositories.GetCombinedStatus(ctx, owner, repo, commitSHA, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching combined status for %s/%s@%s: %w", owner, repo, commitSHA, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/status")

	return mapCombinedStatus(cs), nil
}

// mapCombinedStatus converts a go-github CombinedStatus to the domain type.
// Returns nil if no statuses exist and state is empty.
func mapCombinedStatus(cs *gh.CombinedStatus) *model.CombinedStatus {
	if len(cs.Statuses) == 0 && cs.GetState() == "" {
		return nil
	}

	statuses := make([]model.CommitStatus, 0, len(cs.Statuses))
	for _, s := range cs.Statuses {
		statuses = append(statuses, model.CommitStatus{
			Context:     s.GetContext(),
			State:       s.GetState(),
			Description: s.GetDescription(),
			TargetURL:   s.GetTargetURL(),
		})
	}

	return &model.CombinedStatus{
		State:    cs.GetState(),
		Statuses: statuses,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
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

func parseBaseURL(baseURL string) (*url.URL, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return u, nil
}

func orDefault(statusContext string) string {
	if strings.TrimSpace(statusContext) == "" {
		return DefaultStatusContext
	}
	return statusContext
}
