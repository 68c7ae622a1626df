package db

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

type repoKey struct {
	userID string
	repoID string
}

type commitKey struct {
	userID string
	repoID string
	sha    string
}

// MemoryStore is a process-local Store with the same upsert and ordering
// semantics as PostgresStore. Used for DB_DRIVER=memory and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	repos   map[repoKey]models.Repository
	commits map[commitKey]models.Commit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		repos:   make(map[repoKey]models.Repository),
		commits: make(map[commitKey]models.Commit),
	}
}

func (s *MemoryStore) ListRepositories(ctx context.Context, userID string) ([]*models.Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to query repositories", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	repos := make([]*models.Repository, 0)
	for k, r := range s.repos {
		if k.userID != userID {
			continue
		}
		r := r
		repos = append(repos, &r)
	}

	sort.Slice(repos, func(i, j int) bool {
		if !repos[i].UpstreamUpdatedAt.Equal(repos[j].UpstreamUpdatedAt) {
			return repos[i].UpstreamUpdatedAt.After(repos[j].UpstreamUpdatedAt)
		}
		return repos[i].ID < repos[j].ID
	})
	return repos, nil
}

func (s *MemoryStore) GetRepository(ctx context.Context, userID, repoID string) (*models.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.repos[repoKey{userID, repoID}]
	if !ok {
		return nil, apperrors.NewNotFoundError("repository not found: "+repoID, nil)
	}
	return &r, nil
}

func (s *MemoryStore) UpsertRepositories(ctx context.Context, userID string, repos []*models.Repository, cachedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, repo := range repos {
		k := repoKey{userID, repo.ID}
		next := *repo
		next.UserID = userID
		next.CachedAt = cachedAt.UTC()
		if existing, ok := s.repos[k]; ok {
			next.SyncEnabled = existing.SyncEnabled
		}
		s.repos[k] = next
	}
	return nil
}

func (s *MemoryStore) SetRepositorySyncEnabled(ctx context.Context, userID, repoID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := repoKey{userID, repoID}
	r, ok := s.repos[k]
	if !ok {
		return apperrors.NewNotFoundError("repository not found: "+repoID, nil)
	}
	r.SyncEnabled = enabled
	s.repos[k] = r
	return nil
}

func (s *MemoryStore) ListCommits(ctx context.Context, userID string, repoIDs []string, window models.TimeWindow) ([]*models.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to query commits", err)
	}

	wanted := make(map[string]struct{}, len(repoIDs))
	for _, id := range repoIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	commits := make([]*models.Commit, 0)
	for k, c := range s.commits {
		if k.userID != userID {
			continue
		}
		if _, ok := wanted[k.repoID]; !ok {
			continue
		}
		if c.Date.Before(window.Start) || c.Date.After(window.End) {
			continue
		}
		c := c
		commits = append(commits, &c)
	}

	SortCommits(commits)
	return commits, nil
}

func (s *MemoryStore) UpsertCommits(ctx context.Context, userID, repoID string, commits []*models.Commit, cachedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repos[repoKey{userID, repoID}]; !ok && len(commits) > 0 {
		return apperrors.NewStorageError("commit references unknown repository "+repoID, nil)
	}

	for _, commit := range commits {
		next := *commit
		next.UserID = userID
		next.RepositoryID = repoID
		next.Date = commit.Date.UTC()
		next.CachedAt = cachedAt.UTC()
		s.commits[commitKey{userID, repoID, commit.SHA}] = next
	}
	return nil
}

func (s *MemoryStore) GetCacheFootprint(ctx context.Context, userID string) (*models.CacheFootprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fp models.CacheFootprint
	for k, r := range s.repos {
		if k.userID != userID {
			continue
		}
		fp.RepositoryCount++
		fp.OldestCachedAt = earliestOf(fp.OldestCachedAt, r.CachedAt)
		fp.LastRepositorySync = latestOf(fp.LastRepositorySync, r.CachedAt)
	}
	for k, c := range s.commits {
		if k.userID != userID {
			continue
		}
		fp.CommitCount++
		fp.OldestCachedAt = earliestOf(fp.OldestCachedAt, c.CachedAt)
		fp.LastCommitSync = latestOf(fp.LastCommitSync, c.CachedAt)
	}
	return &fp, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

// SortCommits orders commits by date descending, then repository id, then sha.
func SortCommits(commits []*models.Commit) {
	sort.SliceStable(commits, func(i, j int) bool {
		a, b := commits[i], commits[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.RepositoryID != b.RepositoryID {
			return a.RepositoryID < b.RepositoryID
		}
		return a.SHA < b.SHA
	})
}

func earliestOf(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.Before(*cur) {
		return &t
	}
	return cur
}

func latestOf(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.After(*cur) {
		return &t
	}
	return cur
}
