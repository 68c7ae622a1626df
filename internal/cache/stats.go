package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Kamar-Folarin/repo-cache/internal/db"
	"github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

const (
	estimatedRepositoryBytes = 1024
	estimatedCommitBytes     = 2048
)

// Counters tracks cache decisions for the lifetime of the process
type Counters struct {
	repositoryHits   atomic.Int64
	repositoryMisses atomic.Int64
	commitHits       atomic.Int64
	commitMisses     atomic.Int64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) RepositoryHit()  { c.repositoryHits.Add(1) }
func (c *Counters) RepositoryMiss() { c.repositoryMisses.Add(1) }
func (c *Counters) CommitHit()      { c.commitHits.Add(1) }
func (c *Counters) CommitMiss()     { c.commitMisses.Add(1) }

// Snapshot returns the current repository and commit counters
func (c *Counters) Snapshot() (repositories, commits models.CategoryCounters) {
	repositories = models.CategoryCounters{Hits: c.repositoryHits.Load(), Misses: c.repositoryMisses.Load()}
	commits = models.CategoryCounters{Hits: c.commitHits.Load(), Misses: c.commitMisses.Load()}
	return repositories, commits
}

// StatsAggregator reports cache size and freshness for a user
type StatsAggregator struct {
	store    db.Store
	counters *Counters
	clock    clockwork.Clock
}

func NewStatsAggregator(store db.Store, counters *Counters, clock clockwork.Clock) *StatsAggregator {
	return &StatsAggregator{store: store, counters: counters, clock: clock}
}

// GetCacheStats returns a snapshot of the user's cached data
func (s *StatsAggregator) GetCacheStats(ctx context.Context, userID string) (*models.CacheStats, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId is required", nil)
	}

	fp, err := s.store.GetCacheFootprint(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	repos, commits := s.counters.Snapshot()

	stats := &models.CacheStats{
		UserID:             userID,
		RepositoryCount:    fp.RepositoryCount,
		CommitCount:        fp.CommitCount,
		LastRepositorySync: fp.LastRepositorySync,
		LastCommitSync:     fp.LastCommitSync,
		Repositories:       repos,
		Commits:            commits,
		HitRatio:           hitRatio(repos.Hits+commits.Hits, repos.Misses+commits.Misses),
		EstimatedSize:      estimateSize(fp.RepositoryCount, fp.CommitCount),
	}

	if fp.OldestCachedAt != nil {
		stats.OldestEntryAgeSeconds = ageSeconds(now, *fp.OldestCachedAt)
	}
	if newest := latest(fp.LastRepositorySync, fp.LastCommitSync); newest != nil {
		stats.NewestEntryAgeSeconds = ageSeconds(now, *newest)
	}

	return stats, nil
}

func hitRatio(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func estimateSize(repositories, commits int) string {
	bytes := float64(repositories*estimatedRepositoryBytes + commits*estimatedCommitBytes)
	return fmt.Sprintf("%.2f MB", bytes/1024/1024)
}

func ageSeconds(now, t time.Time) *int64 {
	age := int64(now.Sub(t) / time.Second)
	if age < 0 {
		age = 0
	}
	return &age
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
