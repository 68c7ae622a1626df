package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/repo-cache/internal/db"
	apperrors "github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

func TestStatsAggregator_GetCacheStats(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cache", func(t *testing.T) {
		stats := NewStatsAggregator(db.NewMemoryStore(), NewCounters(), clockwork.NewFakeClockAt(testStart))

		got, err := stats.GetCacheStats(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, testUserID, got.UserID)
		assert.Zero(t, got.RepositoryCount)
		assert.Zero(t, got.CommitCount)
		assert.Nil(t, got.OldestEntryAgeSeconds)
		assert.Nil(t, got.NewestEntryAgeSeconds)
		assert.Zero(t, got.HitRatio)
		assert.Equal(t, "0.00 MB", got.EstimatedSize)
	})

	t.Run("counts, ages and counters", func(t *testing.T) {
		store := db.NewMemoryStore()
		clock := clockwork.NewFakeClockAt(testStart)
		counters := NewCounters()
		stats := NewStatsAggregator(store, counters, clock)

		require.NoError(t, store.UpsertRepositories(ctx, testUserID, []*models.Repository{
			repository("1", "app", true),
		}, testStart))
		require.NoError(t, store.UpsertCommits(ctx, testUserID, "1", []*models.Commit{
			commit("c1", 10), commit("c2", 11),
		}, testStart.Add(time.Minute)))

		counters.RepositoryHit()
		counters.RepositoryHit()
		counters.RepositoryMiss()
		counters.CommitMiss()

		clock.Advance(2 * time.Minute)
		got, err := stats.GetCacheStats(ctx, testUserID)
		require.NoError(t, err)

		assert.Equal(t, 1, got.RepositoryCount)
		assert.Equal(t, 2, got.CommitCount)
		require.NotNil(t, got.OldestEntryAgeSeconds)
		assert.Equal(t, int64(120), *got.OldestEntryAgeSeconds)
		require.NotNil(t, got.NewestEntryAgeSeconds)
		assert.Equal(t, int64(60), *got.NewestEntryAgeSeconds)
		assert.Equal(t, models.CategoryCounters{Hits: 2, Misses: 1}, got.Repositories)
		assert.Equal(t, models.CategoryCounters{Hits: 0, Misses: 1}, got.Commits)
		assert.Equal(t, 0.5, got.HitRatio)
		assert.Equal(t, "0.00 MB", got.EstimatedSize)
	})

	t.Run("missing user", func(t *testing.T) {
		stats := NewStatsAggregator(db.NewMemoryStore(), NewCounters(), clockwork.NewFakeClock())

		_, err := stats.GetCacheStats(ctx, "")
		assert.True(t, apperrors.IsValidationError(err))
	})
}

func TestEstimateSize(t *testing.T) {
	assert.Equal(t, "0.00 MB", estimateSize(0, 0))
	assert.Equal(t, "1.00 MB", estimateSize(0, 512))
	assert.Equal(t, "1.50 MB", estimateSize(512, 512))
}
