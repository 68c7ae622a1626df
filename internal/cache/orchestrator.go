package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Kamar-Folarin/repo-cache/internal/batch"
	"github.com/Kamar-Folarin/repo-cache/internal/db"
	"github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/github"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

const (
	defaultWorkers         = 4
	defaultWindowRetention = 24 * time.Hour
)

// LoadRequest is a combined repository and commit read
type LoadRequest struct {
	UserID string
	Token  string
	Window models.TimeWindow
	Config models.CacheConfig
}

// Orchestrator decides per user and per category whether to serve stored
// data or refresh it from origin.
type Orchestrator struct {
	store     db.Store
	origin    github.OriginClient
	clock     clockwork.Clock
	logger    *logrus.Logger
	counters  *Counters
	stats     *StatsAggregator
	defaults  models.CacheConfig
	processor *batch.Processor
	fetches   *fetchRegistry
	flight    singleflight.Group
}

var _ github.RepositoryRefresher = (*Orchestrator)(nil)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithDefaults sets the cache policy used for unset request fields
func WithDefaults(cfg models.CacheConfig) Option {
	return func(o *Orchestrator) {
		o.defaults = cfg.Resolve(models.DefaultCacheConfig())
	}
}

// WithWorkers bounds how many repositories are resolved concurrently
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		o.processor = batch.NewProcessor(n)
	}
}

// WithWindowRetention bounds how long fetch times are remembered
func WithWindowRetention(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.fetches = newFetchRegistry(d)
	}
}

// WithStats attaches cache stats to combined reads
func WithStats(stats *StatsAggregator) Option {
	return func(o *Orchestrator) {
		o.stats = stats
	}
}

// NewOrchestrator creates a new cache orchestrator
func NewOrchestrator(store db.Store, origin github.OriginClient, clock clockwork.Clock, counters *Counters, logger *logrus.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		origin:    origin,
		clock:     clock,
		logger:    logger,
		counters:  counters,
		defaults:  models.DefaultCacheConfig(),
		processor: batch.NewProcessor(defaultWorkers),
		fetches:   newFetchRegistry(defaultWindowRetention),
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

func repositoriesKey(userID string) string {
	return "repositories:" + userID
}

func commitsKey(userID, repoID string, window models.TimeWindow) string {
	return fmt.Sprintf("commits:%s:%s:%s:%s", userID, repoID,
		window.Start.UTC().Format(time.RFC3339), window.End.UTC().Format(time.RFC3339))
}

// GetRepositories returns the user's repositories, refreshing them from
// origin when the stored set is older than the repository TTL.
func (o *Orchestrator) GetRepositories(ctx context.Context, userID, token string, cfg models.CacheConfig) (*models.RepositoryResult, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId is required", nil)
	}
	cfg = cfg.Resolve(o.defaults)

	logger := o.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"cache_key": repositoriesKey(userID),
	})

	stored, err := o.store.ListRepositories(ctx, userID)
	if err != nil {
		return nil, err
	}

	lastFetched := newestCachedAt(stored)
	if e, ok := o.fetches.get(repositoriesKey(userID)); ok && e.FetchedAt.After(lastFetched) {
		lastFetched = e.FetchedAt
	}
	neverFetched := lastFetched.IsZero()

	if !cfg.ForceRefresh && models.IsFresh(lastFetched, o.clock.Now(), cfg.RepositoryTTL) {
		o.counters.RepositoryHit()
		logger.WithField("source", models.SourceCache).Debug("Serving repositories from cache")
		return &models.RepositoryResult{
			Repositories: stored,
			Meta:         meta(models.SourceCache, lastFetched, true, len(stored)),
		}, nil
	}

	o.counters.RepositoryMiss()
	entry, err := o.fetchRepositories(ctx, userID, token)
	if err != nil {
		if !canServeStale(ctx, err) || neverFetched {
			logger.WithError(err).Error("Failed to refresh repositories")
			return nil, err
		}
		logger.WithError(err).Warn("Serving stale repositories after refresh failure")
		return &models.RepositoryResult{
			Repositories: stored,
			Meta:         meta(models.SourceStaleCache, lastFetched, false, len(stored)),
		}, nil
	}

	refreshed, err := o.store.ListRepositories(ctx, userID)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"source": models.SourceOrigin,
		"count":  len(refreshed),
	}).Info("Refreshed repositories from origin")
	return &models.RepositoryResult{
		Repositories: refreshed,
		Meta:         meta(models.SourceOrigin, entry.FetchedAt, true, len(refreshed)),
	}, nil
}

// RefreshRepositories fetches the user's repositories from origin regardless
// of freshness and stores them. A fetch already in flight for the user is
// joined rather than repeated. It returns how many repositories origin
// reported.
func (o *Orchestrator) RefreshRepositories(ctx context.Context, userID, token string) (int, error) {
	if userID == "" {
		return 0, errors.NewValidationError("userId is required", nil)
	}

	entry, err := o.fetchRepositories(ctx, userID, token)
	if err != nil {
		o.logger.WithFields(logrus.Fields{
			"user_id":   userID,
			"cache_key": repositoriesKey(userID),
		}).WithError(err).Error("Failed to refresh repositories")
		return 0, err
	}
	return entry.Count, nil
}

func (o *Orchestrator) fetchRepositories(ctx context.Context, userID, token string) (fetchEntry, error) {
	key := repositoriesKey(userID)
	ch := o.flight.DoChan(key, func() (interface{}, error) {
		// Shared by every waiter, so it must outlive the first caller.
		fctx := context.WithoutCancel(ctx)

		repos, err := o.origin.ListRepositories(fctx, token)
		if err != nil {
			return nil, err
		}

		now := o.clock.Now()
		if err := o.store.UpsertRepositories(fctx, userID, repos, now); err != nil {
			return nil, err
		}

		entry := fetchEntry{FetchedAt: now, Count: len(repos)}
		o.fetches.set(key, entry)
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return fetchEntry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return fetchEntry{}, res.Err
		}
		return res.Val.(fetchEntry), nil
	}
}

// repositoryOutcome is how one repository's commits were resolved
type repositoryOutcome struct {
	repo      *models.Repository
	source    models.CacheSource
	fetchedAt time.Time
	partial   bool
	err       error
}

// GetCommits returns commits within window for the sync-enabled repositories
// in repos. Each repository is resolved independently; repositories that
// fail without any cached data are reported in the metadata, and the call
// only fails when every repository did.
func (o *Orchestrator) GetCommits(ctx context.Context, userID string, repos []*models.Repository, token string, window models.TimeWindow, cfg models.CacheConfig) (*models.CommitResult, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId is required", nil)
	}
	if window.Start.IsZero() || window.End.IsZero() || window.Start.After(window.End) {
		return nil, errors.NewValidationError("invalid commit window", nil)
	}
	cfg = cfg.Resolve(o.defaults)

	eligible := make([]*models.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil && r.SyncEnabled {
			eligible = append(eligible, r)
		}
	}

	if len(eligible) == 0 {
		return &models.CommitResult{
			Commits: []*models.Commit{},
			Meta: models.CommitMeta{
				CacheMeta:         models.CacheMeta{Source: models.SourceCache, IsFresh: true},
				RepositoryDetails: []models.RepositoryCommitDetail{},
			},
		}, nil
	}

	outcomes := make([]repositoryOutcome, len(eligible))
	err := o.processor.Run(ctx, len(eligible), func(ctx context.Context, i int) error {
		out, err := o.resolveRepository(ctx, userID, eligible[i], token, window, cfg)
		outcomes[i] = out
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(eligible))
	for i, r := range eligible {
		ids[i] = r.ID
	}

	stored, err := o.store.ListCommits(ctx, userID, ids, window)
	if err != nil {
		return nil, err
	}

	commits, totals, limited := capPerRepository(stored, cfg.MaxCommitsPerRepo)
	returned := make(map[string]int, len(eligible))
	for _, c := range commits {
		returned[c.RepositoryID]++
	}

	result := &models.CommitResult{
		Commits: commits,
		Meta: models.CommitMeta{
			RepositoryDetails: make([]models.RepositoryCommitDetail, 0, len(outcomes)),
		},
		CacheDecisions: len(outcomes),
	}

	var (
		anyStale, anyOrigin bool
		oldest              time.Time
		firstErr            error
		failed              int
	)
	for _, out := range outcomes {
		// A failed repository that still has stored commits is served stale.
		if out.err != nil && totals[out.repo.ID] > 0 {
			out.source = models.SourceStaleCache
		}

		if out.err != nil && out.source == "" {
			failed++
			if firstErr == nil {
				firstErr = out.err
			}
			result.Meta.Failures = append(result.Meta.Failures, failure(out.repo, out.err))
			continue
		}

		switch out.source {
		case models.SourceCache:
			result.CacheHits++
		case models.SourceOrigin:
			anyOrigin = true
		case models.SourceStaleCache:
			anyStale = true
		}
		if !out.fetchedAt.IsZero() && (oldest.IsZero() || out.fetchedAt.Before(oldest)) {
			oldest = out.fetchedAt
		}

		result.Meta.RepositoryDetails = append(result.Meta.RepositoryDetails, models.RepositoryCommitDetail{
			RepositoryID: out.repo.ID,
			FullName:     out.repo.FullName(),
			Source:       out.source,
			IsFresh:      out.source != models.SourceStaleCache,
			Count:        returned[out.repo.ID],
			TotalCached:  totals[out.repo.ID],
			Limited:      limited[out.repo.ID],
			Partial:      out.partial,
		})
	}

	if failed == len(outcomes) {
		return nil, firstErr
	}

	source := models.SourceCache
	switch {
	case anyStale:
		source = models.SourceStaleCache
	case anyOrigin:
		source = models.SourceOrigin
	}
	result.Meta.CacheMeta = meta(source, oldest, !anyStale && failed == 0, len(commits))

	o.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"source":       source,
		"repositories": len(eligible),
		"failed":       failed,
		"count":        len(commits),
	}).Info("Resolved commits")
	return result, nil
}

// resolveRepository decides between cache and origin for one repository.
// A non-nil error aborts the whole request; recoverable failures are
// recorded on the outcome instead.
func (o *Orchestrator) resolveRepository(ctx context.Context, userID string, repo *models.Repository, token string, window models.TimeWindow, cfg models.CacheConfig) (repositoryOutcome, error) {
	out := repositoryOutcome{repo: repo}
	key := commitsKey(userID, repo.ID, window)
	logger := o.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"repository": repo.FullName(),
		"cache_key":  key,
	})

	prev, known := o.fetches.get(key)
	if known && !cfg.ForceRefresh && models.IsFresh(prev.FetchedAt, o.clock.Now(), cfg.CommitTTL) {
		o.counters.CommitHit()
		out.source = models.SourceCache
		out.fetchedAt = prev.FetchedAt
		out.partial = prev.Partial
		return out, nil
	}

	o.counters.CommitMiss()
	entry, err := o.fetchCommits(ctx, key, userID, repo, token, window)
	if err == nil {
		out.source = models.SourceOrigin
		out.fetchedAt = entry.FetchedAt
		out.partial = entry.Partial
		return out, nil
	}

	if !canServeStale(ctx, err) {
		logger.WithError(err).Error("Failed to refresh commits")
		return out, err
	}

	out.err = err
	if known {
		out.source = models.SourceStaleCache
		out.fetchedAt = prev.FetchedAt
		out.partial = prev.Partial
		logger.WithError(err).Warn("Serving stale commits after refresh failure")
		return out, nil
	}

	logger.WithError(err).Warn("Failed to fetch commits")
	return out, nil
}

func (o *Orchestrator) fetchCommits(ctx context.Context, key, userID string, repo *models.Repository, token string, window models.TimeWindow) (fetchEntry, error) {
	ch := o.flight.DoChan(key, func() (interface{}, error) {
		fctx := context.WithoutCancel(ctx)

		page, err := o.origin.ListCommits(fctx, token, repo.Owner, repo.Name, window.Start, window.End)
		if err != nil {
			return nil, err
		}

		now := o.clock.Now()
		if err := o.store.UpsertCommits(fctx, userID, repo.ID, page.Commits, now); err != nil {
			return nil, err
		}

		entry := fetchEntry{FetchedAt: now, Partial: page.Partial, Count: len(page.Commits)}
		o.fetches.set(key, entry)
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return fetchEntry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return fetchEntry{}, res.Err
		}
		return res.Val.(fetchEntry), nil
	}
}

// Load resolves repositories and then their commits, attaching stats and a
// per-request performance summary.
func (o *Orchestrator) Load(ctx context.Context, req LoadRequest) (*models.LoadResponse, error) {
	repos, err := o.GetRepositories(ctx, req.UserID, req.Token, req.Config)
	if err != nil {
		return nil, err
	}

	commits, err := o.GetCommits(ctx, req.UserID, repos.Repositories, req.Token, req.Window, req.Config)
	if err != nil {
		return nil, err
	}

	decisions := 1 + commits.CacheDecisions
	hits := commits.CacheHits
	if repos.Meta.Source == models.SourceCache {
		hits++
	}

	resp := &models.LoadResponse{
		Commits:      commits.Commits,
		Repositories: repos.Repositories,
		Metadata: models.LoadMetadata{
			Repositories: repos.Meta,
			Commits:      commits.Meta,
			Performance: models.PerformanceSummary{
				UsedCache: hits > 0 ||
					repos.Meta.Source == models.SourceStaleCache ||
					commits.Meta.Source == models.SourceStaleCache,
				CacheHitRatio: float64(hits) / float64(decisions),
			},
		},
	}

	if o.stats != nil {
		stats, err := o.stats.GetCacheStats(ctx, req.UserID)
		if err != nil {
			o.logger.WithField("user_id", req.UserID).WithError(err).Warn("Failed to collect cache stats")
		} else {
			resp.Metadata.Stats = stats
		}
	}

	return resp, nil
}

// canServeStale reports whether a refresh failure may fall back to stored
// data. Credential, input and storage errors always propagate.
func canServeStale(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch errors.TypeOf(err) {
	case errors.ErrUnauthorized, errors.ErrInvalidInput, errors.ErrStorage:
		return false
	}
	return true
}

func meta(source models.CacheSource, lastUpdated time.Time, fresh bool, count int) models.CacheMeta {
	m := models.CacheMeta{Source: source, IsFresh: fresh, Count: count}
	if !lastUpdated.IsZero() {
		t := lastUpdated.UTC()
		m.LastUpdated = &t
	}
	return m
}

func failure(repo *models.Repository, err error) models.RepositoryFailure {
	f := models.RepositoryFailure{
		RepositoryID: repo.ID,
		FullName:     repo.FullName(),
		ErrorType:    string(errors.TypeOf(err)),
		Error:        err.Error(),
	}
	if rle, ok := errors.AsRateLimit(err); ok {
		reset := rle.ResetTime.UTC()
		f.RetryAfter = &reset
	}
	return f
}

func newestCachedAt(repos []*models.Repository) time.Time {
	var newest time.Time
	for _, r := range repos {
		if r.CachedAt.After(newest) {
			newest = r.CachedAt
		}
	}
	return newest
}

// capPerRepository keeps the newest max commits of each repository from a
// date-descending list.
func capPerRepository(commits []*models.Commit, max int) ([]*models.Commit, map[string]int, map[string]bool) {
	totals := make(map[string]int)
	limited := make(map[string]bool)
	out := make([]*models.Commit, 0, len(commits))

	for _, c := range commits {
		totals[c.RepositoryID]++
		if max > 0 && totals[c.RepositoryID] > max {
			limited[c.RepositoryID] = true
			continue
		}
		out = append(out, c)
	}
	return out, totals, limited
}
