package github

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v67/github"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/Kamar-Folarin/repo-cache/internal/config"
	apperrors "github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

// RateLimitInfo holds the last known quota for one credential
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// CommitPage is the result of a bounded commit listing. Partial is set when
// the page cap was reached before the listing was exhausted.
type CommitPage struct {
	Commits []*models.Commit
	Partial bool
}

// GitHubClient talks to the GitHub REST API on behalf of many users; the
// credential is supplied per call.
type GitHubClient struct {
	httpClient     *http.Client
	baseURL        *url.URL
	userAgent      string
	logger         *logrus.Logger
	clock          clockwork.Clock
	requestTimeout time.Duration
	perPage        int
	maxCommitPages int

	maxAttempts     int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
	retryMultiplier float64

	mu         sync.Mutex
	rateLimits map[string]RateLimitInfo
}

// ClientOption allows configuring the GitHub client
type ClientOption func(*GitHubClient)

// WithRetryConfig configures retry behavior for transient failures
func WithRetryConfig(maxAttempts int, initialBackoff, maxBackoff time.Duration) ClientOption {
	return func(c *GitHubClient) {
		c.maxAttempts = maxAttempts
		c.initialBackoff = initialBackoff
		c.maxBackoff = maxBackoff
	}
}

// WithClock replaces the wall clock used for rate-limit bookkeeping
func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *GitHubClient) {
		c.clock = clock
	}
}

// NewGitHubClient creates a new GitHub client from cfg and options
func NewGitHubClient(cfg *config.GitHubConfig, logger *logrus.Logger, opts ...ClientOption) (*GitHubClient, error) {
	base := cfg.APIBaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API base URL: %w", err)
	}

	client := &GitHubClient{
		httpClient:      &http.Client{},
		baseURL:         baseURL,
		userAgent:       cfg.UserAgent,
		logger:          logger,
		clock:           clockwork.NewRealClock(),
		requestTimeout:  cfg.RequestTimeout,
		perPage:         cfg.PerPage,
		maxCommitPages:  cfg.MaxCommitPages,
		maxAttempts:     cfg.RateLimit.MaxAttempts,
		initialBackoff:  cfg.RateLimit.InitialBackoff,
		maxBackoff:      cfg.RateLimit.MaxBackoff,
		retryMultiplier: cfg.RateLimit.RetryMultiplier,
		rateLimits:      make(map[string]RateLimitInfo),
	}

	// Apply options
	for _, opt := range opts {
		opt(client)
	}

	if client.maxAttempts < 1 {
		client.maxAttempts = 1
	}
	if client.retryMultiplier < 1 {
		client.retryMultiplier = 2
	}

	return client, nil
}

// apiClient builds a go-github client that authenticates with token
func (c *GitHubClient) apiClient(ctx context.Context, token string) *gogithub.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)

	gh := gogithub.NewClient(oauth2.NewClient(ctx, ts))
	gh.BaseURL = c.baseURL
	gh.UserAgent = c.userAgent
	return gh
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// checkRateLimit refuses to call upstream while the credential's quota is
// exhausted and the reset time has not passed.
func (c *GitHubClient) checkRateLimit(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.rateLimits[key]
	if !ok || info.Remaining > 0 {
		return nil
	}
	if c.clock.Now().Before(info.ResetTime) {
		return apperrors.NewRateLimitError(info.ResetTime, info.Limit, info.Remaining)
	}
	delete(c.rateLimits, key)
	return nil
}

// updateRateLimitInfo records quota from a response or a rate limit error
func (c *GitHubClient) updateRateLimitInfo(key string, resp *gogithub.Response, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rle, ok := apperrors.AsRateLimit(err); ok {
		c.rateLimits[key] = RateLimitInfo{Limit: rle.Limit, Remaining: 0, ResetTime: rle.ResetTime}
		return
	}
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	c.rateLimits[key] = RateLimitInfo{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		ResetTime: resp.Rate.Reset.Time,
	}
}

// doRequestWithBackoff runs call under the per-request timeout and retries
// transient failures with exponential backoff.
func (c *GitHubClient) doRequestWithBackoff(ctx context.Context, key string, logger *logrus.Entry, call func(context.Context) (*gogithub.Response, error)) (*gogithub.Response, error) {
	backoff := c.initialBackoff

	for attempt := 1; ; attempt++ {
		if err := c.checkRateLimit(key); err != nil {
			return nil, err
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		resp, err := call(reqCtx)
		cancel()

		if err == nil {
			c.updateRateLimitInfo(key, resp, nil)
			return resp, nil
		}

		classified := c.classifyError(err)
		c.updateRateLimitInfo(key, resp, classified)

		if !apperrors.IsRetryable(classified) || attempt >= c.maxAttempts || ctx.Err() != nil {
			return resp, classified
		}

		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff.String(),
		}).WithError(err).Warn("GitHub request failed, retrying")

		select {
		case <-ctx.Done():
			return resp, classified
		case <-c.clock.After(backoff):
		}
		backoff = time.Duration(math.Min(float64(backoff)*c.retryMultiplier, float64(c.maxBackoff)))
	}
}

// ListRepositories lists every repository visible to token, most recently
// updated first.
func (c *GitHubClient) ListRepositories(ctx context.Context, token string) ([]*models.Repository, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorizedError("missing GitHub credential", nil)
	}

	key := tokenKey(token)
	logger := c.logger.WithField("operation", "list_repositories")
	gh := c.apiClient(ctx, token)

	opts := &gogithub.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gogithub.ListOptions{PerPage: c.perPage},
	}

	repos := make([]*models.Repository, 0)
	for {
		var page []*gogithub.Repository
		resp, err := c.doRequestWithBackoff(ctx, key, logger, func(ctx context.Context) (*gogithub.Response, error) {
			var (
				resp *gogithub.Response
				err  error
			)
			page, resp, err = gh.Repositories.ListByAuthenticatedUser(ctx, opts)
			return resp, err
		})
		if err != nil {
			logger.WithError(err).Error("Failed to list repositories from GitHub API")
			return nil, err
		}

		for _, r := range page {
			repos = append(repos, toRepository(r))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logger.WithField("count", len(repos)).Info("Fetched repositories from GitHub API")
	return repos, nil
}

// ListCommits lists commits of owner/name between since and until, stopping
// after the configured page cap.
func (c *GitHubClient) ListCommits(ctx context.Context, token, owner, name string, since, until time.Time) (*CommitPage, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorizedError("missing GitHub credential", nil)
	}
	if owner == "" || name == "" {
		return nil, apperrors.NewValidationError("owner and name cannot be empty", nil)
	}

	key := tokenKey(token)
	logger := c.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  name,
		"since": since.Format(time.RFC3339),
		"until": until.Format(time.RFC3339),
	})
	gh := c.apiClient(ctx, token)

	opts := &gogithub.CommitsListOptions{
		Since:       since,
		Until:       until,
		ListOptions: gogithub.ListOptions{PerPage: c.perPage},
	}

	result := &CommitPage{Commits: make([]*models.Commit, 0)}
	for page := 1; ; page++ {
		var commits []*gogithub.RepositoryCommit
		resp, err := c.doRequestWithBackoff(ctx, key, logger, func(ctx context.Context) (*gogithub.Response, error) {
			var (
				resp *gogithub.Response
				err  error
			)
			commits, resp, err = gh.Repositories.ListCommits(ctx, owner, name, opts)
			return resp, err
		})
		if err != nil {
			if isEmptyRepository(resp) {
				logger.Debug("Repository is empty")
				return result, nil
			}
			if apperrors.IsNotFound(err) {
				return nil, fmt.Errorf("%w: %v", apperrors.NewRepositoryNotFoundError(owner, name), err)
			}
			logger.WithError(err).Error("Failed to fetch commits from GitHub API")
			return nil, err
		}

		for _, rc := range commits {
			result.Commits = append(result.Commits, toCommit(rc))
		}

		if resp.NextPage == 0 {
			break
		}
		if page >= c.maxCommitPages {
			result.Partial = true
			logger.WithField("max_pages", c.maxCommitPages).Warn("Commit page cap reached, result is partial")
			break
		}
		opts.Page = resp.NextPage
	}

	logger.WithFields(logrus.Fields{
		"count":   len(result.Commits),
		"partial": result.Partial,
	}).Info("Fetched commits from GitHub API")
	return result, nil
}

// GitHub answers 409 for repositories without any commits.
func isEmptyRepository(resp *gogithub.Response) bool {
	return resp != nil && resp.Response != nil && resp.StatusCode == http.StatusConflict
}

func toRepository(r *gogithub.Repository) *models.Repository {
	return &models.Repository{
		ID:                strconv.FormatInt(r.GetID(), 10),
		Owner:             r.GetOwner().GetLogin(),
		Name:              r.GetName(),
		Description:       r.GetDescription(),
		IsPrivate:         r.GetPrivate(),
		Language:          r.GetLanguage(),
		URL:               r.GetHTMLURL(),
		Stars:             r.GetStargazersCount(),
		Forks:             r.GetForksCount(),
		UpstreamUpdatedAt: r.GetUpdatedAt().Time,
		SyncEnabled:       true,
	}
}

func toCommit(rc *gogithub.RepositoryCommit) *models.Commit {
	commit := rc.GetCommit()
	author := commit.GetAuthor().GetName()
	if author == "" {
		author = rc.GetAuthor().GetLogin()
	}

	// GitHub filters since/until on the committer date, so windows are
	// matched against it too.
	date := commit.GetCommitter().GetDate().Time
	if date.IsZero() {
		date = commit.GetAuthor().GetDate().Time
	}

	status := models.CommitStatusUnverified
	if commit.GetVerification().GetVerified() {
		status = models.CommitStatusVerified
	}

	return &models.Commit{
		SHA:         rc.GetSHA(),
		Message:     commit.GetMessage(),
		Author:      author,
		AuthorEmail: commit.GetAuthor().GetEmail(),
		Date:        date,
		URL:         rc.GetHTMLURL(),
		Status:      status,
	}
}
