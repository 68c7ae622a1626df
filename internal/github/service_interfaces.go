package github

import (
	"context"
	"time"

	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

// OriginClient defines the upstream operations the cache depends on
type OriginClient interface {
	// ListRepositories lists every repository visible to the credential
	ListRepositories(ctx context.Context, token string) ([]*models.Repository, error)

	// ListCommits lists commits of owner/name within [since, until], bounded by a page cap
	ListCommits(ctx context.Context, token, owner, name string, since, until time.Time) (*CommitPage, error)
}

// RepositoryRefresher refreshes a user's stored repositories from origin,
// sharing any refresh already in flight for that user
type RepositoryRefresher interface {
	RefreshRepositories(ctx context.Context, userID, token string) (int, error)
}

// SyncService defines explicit, TTL-bypassing repository synchronization
type SyncService interface {
	// SyncRepositoriesFromGitHub upserts the given repositories for the user
	// and returns the user's full stored set
	SyncRepositoriesFromGitHub(ctx context.Context, userID string, repos []*models.Repository) (*models.SyncResult, error)

	// SyncFromOrigin fetches the user's repositories upstream and syncs them
	SyncFromOrigin(ctx context.Context, userID, token string) (*models.SyncResult, error)
}

// RepositoryService defines operations on stored repositories
type RepositoryService interface {
	// ListRepositories returns the stored repositories without contacting upstream
	ListRepositories(ctx context.Context, userID string) ([]*models.Repository, error)

	// SetSyncEnabled toggles whether commits are fetched for a repository
	SetSyncEnabled(ctx context.Context, userID, repoID string, enabled bool) (*models.Repository, error)
}

var _ OriginClient = (*GitHubClient)(nil)
