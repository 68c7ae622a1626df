package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

func TestMemoryStore_RepositoryUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.UpsertRepositories(ctx, "u1", testRepositories(), testCachedAt))
	require.NoError(t, store.SetRepositorySyncEnabled(ctx, "u1", "102", false))

	// A later upsert overwrites upstream fields but keeps the local sync flag.
	later := testCachedAt.Add(time.Minute)
	require.NoError(t, store.UpsertRepositories(ctx, "u1", []*models.Repository{
		{ID: "102", Owner: "acme", Name: "lib-renamed", URL: "https://github.com/acme/lib-renamed", SyncEnabled: true},
	}, later))

	repos, err := store.ListRepositories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, repos, 2, "rows missing from a later upsert are retained")

	lib, err := store.GetRepository(ctx, "u1", "102")
	require.NoError(t, err)
	assert.Equal(t, "lib-renamed", lib.Name)
	assert.False(t, lib.SyncEnabled)
	assert.Equal(t, later, lib.CachedAt)

	other, err := store.ListRepositories(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = store.GetRepository(ctx, "u2", "101")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemoryStore_Commits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.UpsertRepositories(ctx, "u1", testRepositories(), testCachedAt))

	same := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertCommits(ctx, "u1", "102", []*models.Commit{
		{SHA: "b", Date: same},
		{SHA: "outside", Date: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
	}, testCachedAt))
	require.NoError(t, store.UpsertCommits(ctx, "u1", "101", []*models.Commit{
		{SHA: "z", Date: same},
		{SHA: "a", Date: same},
		{SHA: "newest", Date: same.Add(time.Hour)},
	}, testCachedAt))

	commits, err := store.ListCommits(ctx, "u1", []string{"101", "102"}, testWindow)
	require.NoError(t, err)

	var order []string
	for _, c := range commits {
		order = append(order, c.RepositoryID+"/"+c.SHA)
	}
	assert.Equal(t, []string{"101/newest", "101/a", "101/z", "102/b"}, order)

	only, err := store.ListCommits(ctx, "u1", []string{"102"}, testWindow)
	require.NoError(t, err)
	assert.Len(t, only, 1)

	err = store.UpsertCommits(ctx, "u1", "unknown", []*models.Commit{{SHA: "x", Date: same}}, testCachedAt)
	assert.True(t, apperrors.IsStorage(err))
}

func TestMemoryStore_Footprint(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	fp, err := store.GetCacheFootprint(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, fp.RepositoryCount)
	assert.Nil(t, fp.OldestCachedAt)

	require.NoError(t, store.UpsertRepositories(ctx, "u1", testRepositories(), testCachedAt))
	commitTime := testCachedAt.Add(10 * time.Second)
	require.NoError(t, store.UpsertCommits(ctx, "u1", "101", []*models.Commit{{SHA: "c1", Date: testWindow.Start}}, commitTime))

	fp, err = store.GetCacheFootprint(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, fp.RepositoryCount)
	assert.Equal(t, 1, fp.CommitCount)
	assert.Equal(t, testCachedAt, *fp.OldestCachedAt)
	assert.Equal(t, testCachedAt, *fp.LastRepositorySync)
	assert.Equal(t, commitTime, *fp.LastCommitSync)
}
