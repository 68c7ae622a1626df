package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/repo-cache/internal/cache"
	"github.com/Kamar-Folarin/repo-cache/internal/db"
	apperrors "github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/github"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

// MockCacheService is a mock implementation of CacheService
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Load(ctx context.Context, req cache.LoadRequest) (*models.LoadResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoadResponse), args.Error(1)
}

func (m *MockCacheService) GetRepositories(ctx context.Context, userID, token string, cfg models.CacheConfig) (*models.RepositoryResult, error) {
	args := m.Called(ctx, userID, token, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RepositoryResult), args.Error(1)
}

// MockSyncService is a mock implementation of github.SyncService
type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) SyncRepositoriesFromGitHub(ctx context.Context, userID string, repos []*models.Repository) (*models.SyncResult, error) {
	args := m.Called(ctx, userID, repos)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

func (m *MockSyncService) SyncFromOrigin(ctx context.Context, userID, token string) (*models.SyncResult, error) {
	args := m.Called(ctx, userID, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

// MockRepositoryService is a mock implementation of github.RepositoryService
type MockRepositoryService struct {
	mock.Mock
}

func (m *MockRepositoryService) ListRepositories(ctx context.Context, userID string) ([]*models.Repository, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Repository), args.Error(1)
}

func (m *MockRepositoryService) SetSyncEnabled(ctx context.Context, userID, repoID string, enabled bool) (*models.Repository, error) {
	args := m.Called(ctx, userID, repoID, enabled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Repository), args.Error(1)
}

// MockStatsService is a mock implementation of StatsService
type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) GetCacheStats(ctx context.Context, userID string) (*models.CacheStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CacheStats), args.Error(1)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mocks struct {
	cache  *MockCacheService
	sync   *MockSyncService
	repos  *MockRepositoryService
	stats  *MockStatsService
	health *MockHealthChecker
}

func (m mocks) assertExpectations(t *testing.T) {
	m.cache.AssertExpectations(t)
	m.sync.AssertExpectations(t)
	m.repos.AssertExpectations(t)
	m.stats.AssertExpectations(t)
	m.health.AssertExpectations(t)
}

func setupTestHandler() (*gin.Engine, mocks) {
	gin.SetMode(gin.TestMode)

	m := mocks{
		cache:  new(MockCacheService),
		sync:   new(MockSyncService),
		repos:  new(MockRepositoryService),
		stats:  new(MockStatsService),
		health: new(MockHealthChecker),
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewHandler(m.cache, m.sync, m.repos, m.stats, m.health, logger)
	return SetupRouter(handler, logger), m
}

func doRequest(router *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetCommits(t *testing.T) {
	const path = "/api/v1/commits?userId=u1&startDate=2024-01-01&endDate=2024-01-31"

	t.Run("success", func(t *testing.T) {
		router, m := setupTestHandler()

		expected := &models.LoadResponse{
			Commits:      []*models.Commit{{RepositoryID: "1", SHA: "c1"}},
			Repositories: []*models.Repository{{ID: "1", Owner: "acme", Name: "app"}},
			Metadata: models.LoadMetadata{
				Repositories: models.CacheMeta{Source: models.SourceCache, IsFresh: true, Count: 1},
				Commits:      models.CommitMeta{CacheMeta: models.CacheMeta{Source: models.SourceOrigin, IsFresh: true, Count: 1}},
				Performance:  models.PerformanceSummary{UsedCache: true, CacheHitRatio: 0.5},
			},
		}
		m.cache.On("Load", mock.Anything, cache.LoadRequest{
			UserID: "u1",
			Token:  "tok",
			Window: models.TimeWindow{
				Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
			},
			Config: models.CacheConfig{ForceRefresh: true, CommitTTL: 60 * time.Second, MaxCommitsPerRepo: 10},
		}).Return(expected, nil).Once()

		w := doRequest(router, http.MethodGet, path+"&forceRefresh=true&commitCacheTime=60&maxCommitsPerRepo=10", nil, "tok")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body["commits"], 1)
		assert.Len(t, body["repositories"], 1)
		metadata := body["metadata"].(map[string]interface{})
		assert.Equal(t, "cache", metadata["repositories"].(map[string]interface{})["source"])
		assert.Equal(t, "origin", metadata["commits"].(map[string]interface{})["source"])
		assert.Equal(t, 0.5, metadata["performance"].(map[string]interface{})["cacheHitRatio"])
		m.assertExpectations(t)
	})

	t.Run("missing parameters", func(t *testing.T) {
		router, m := setupTestHandler()

		for _, p := range []string{
			"/api/v1/commits?startDate=2024-01-01&endDate=2024-01-31",
			"/api/v1/commits?userId=u1&endDate=2024-01-31",
			"/api/v1/commits?userId=u1&startDate=2024-01-01",
			"/api/v1/commits?userId=u1&startDate=2024-02-01&endDate=2024-01-01",
			"/api/v1/commits?userId=u1&startDate=yesterday&endDate=2024-01-01",
			path + "&commitCacheTime=-5",
			path + "&forceRefresh=maybe",
		} {
			w := doRequest(router, http.MethodGet, p, nil, "tok")
			assert.Equal(t, http.StatusBadRequest, w.Code, p)
			assert.Equal(t, string(apperrors.ErrInvalidInput), decodeError(t, w).Type, p)
		}
		m.assertExpectations(t)
	})

	t.Run("missing or malformed credential", func(t *testing.T) {
		router, m := setupTestHandler()

		w := doRequest(router, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		m.assertExpectations(t)
	})

	t.Run("rate limit sets Retry-After", func(t *testing.T) {
		router, m := setupTestHandler()
		m.cache.On("Load", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewRateLimitError(time.Now().Add(90*time.Second), 5000, 0)).Once()

		w := doRequest(router, http.MethodGet, path, nil, "tok")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
		require.NoError(t, err)
		assert.InDelta(t, 90, retryAfter, 2)
		assert.Equal(t, string(apperrors.ErrRateLimit), decodeError(t, w).Type)
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
		}{
			{"unauthorized", apperrors.NewUnauthorizedError("bad credentials", nil), http.StatusUnauthorized},
			{"not found", apperrors.NewRepositoryNotFoundError("acme", "gone"), http.StatusNotFound},
			{"transient", apperrors.NewTransientError("GitHub returned 502", nil), http.StatusServiceUnavailable},
			{"storage", apperrors.NewStorageError("failed to commit", nil), http.StatusInternalServerError},
			{"wrapped transient", fmt.Errorf("loading: %w", apperrors.NewTransientError("timeout", nil)), http.StatusServiceUnavailable},
			{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				router, m := setupTestHandler()
				m.cache.On("Load", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

				w := doRequest(router, http.MethodGet, path, nil, "tok")
				assert.Equal(t, tt.status, w.Code)
				assert.Empty(t, w.Header().Get("Retry-After"))
			})
		}
	})
}

func TestListRepositories(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, m := setupTestHandler()
		m.cache.On("GetRepositories", mock.Anything, "u1", "tok", models.CacheConfig{RepositoryTTL: 30 * time.Second}).
			Return(&models.RepositoryResult{
				Repositories: []*models.Repository{{ID: "1", Owner: "acme", Name: "app"}},
				Meta:         models.CacheMeta{Source: models.SourceOrigin, IsFresh: true, Count: 1},
			}, nil).Once()

		w := doRequest(router, http.MethodGet, "/api/v1/repositories?userId=u1&repositoryCacheTime=30", nil, "tok")
		require.Equal(t, http.StatusOK, w.Code)

		var resp RepositoryListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Repositories, 1)
		assert.Equal(t, models.SourceOrigin, resp.Metadata.Source)
		m.assertExpectations(t)
	})

	t.Run("missing user", func(t *testing.T) {
		router, _ := setupTestHandler()
		w := doRequest(router, http.MethodGet, "/api/v1/repositories", nil, "tok")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncRepositories(t *testing.T) {
	repos := []*models.Repository{
		{ID: "1", Owner: "acme", Name: "app", URL: "https://github.com/acme/app"},
		{ID: "2", Owner: "acme", Name: "lib", URL: "https://github.com/acme/lib"},
	}
	input := []*SyncRepository{{ID: "1", Owner: "acme", Name: "app", URL: "https://github.com/acme/app"}}

	t.Run("explicit list", func(t *testing.T) {
		router, m := setupTestHandler()
		m.sync.On("SyncRepositoriesFromGitHub", mock.Anything, "u1", mock.MatchedBy(func(in []*models.Repository) bool {
			return len(in) == 1 && in[0].ID == "1"
		})).Return(&models.SyncResult{Success: true, Repositories: repos, Synced: 1}, nil).Once()

		w := doRequest(router, http.MethodPost, "/api/v1/repositories/sync", SyncRequest{UserID: "u1", Repositories: input}, "tok")
		require.Equal(t, http.StatusOK, w.Code)

		var resp SyncResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "Synced 1 repositories", resp.Message)
		assert.Len(t, resp.Repositories, 2)
		m.assertExpectations(t)
	})

	t.Run("explicit list needs a credential", func(t *testing.T) {
		router, m := setupTestHandler()
		w := doRequest(router, http.MethodPost, "/api/v1/repositories/sync", SyncRequest{UserID: "u1", Repositories: input}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Type)
		m.sync.AssertNotCalled(t, "SyncRepositoriesFromGitHub", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed credential", func(t *testing.T) {
		router, m := setupTestHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/sync", bytes.NewBufferString(`{"userId":"u1","repositories":[{"id":"1","owner":"acme","name":"app"}]}`))
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		m.sync.AssertNotCalled(t, "SyncRepositoriesFromGitHub", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("syncEnabled defaults to true", func(t *testing.T) {
		router, m := setupTestHandler()
		m.sync.On("SyncRepositoriesFromGitHub", mock.Anything, "u1", mock.MatchedBy(func(in []*models.Repository) bool {
			return len(in) == 2 && in[0].SyncEnabled && !in[1].SyncEnabled
		})).Return(&models.SyncResult{Success: true, Repositories: repos, Synced: 2}, nil).Once()

		body := `{"userId":"u1","repositories":[{"id":"1","owner":"acme","name":"app"},{"id":"2","owner":"acme","name":"lib","syncEnabled":false}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/sync", bytes.NewBufferString(body))
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		m.assertExpectations(t)
	})

	t.Run("fetches from origin when no list is given", func(t *testing.T) {
		router, m := setupTestHandler()
		m.sync.On("SyncFromOrigin", mock.Anything, "u1", "tok").
			Return(&models.SyncResult{Success: true, Repositories: repos, Synced: 2}, nil).Once()

		w := doRequest(router, http.MethodPost, "/api/v1/repositories/sync", map[string]string{"userId": "u1"}, "tok")
		require.Equal(t, http.StatusOK, w.Code)

		var resp SyncResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		m.assertExpectations(t)
	})

	t.Run("origin sync needs a credential", func(t *testing.T) {
		router, m := setupTestHandler()
		w := doRequest(router, http.MethodPost, "/api/v1/repositories/sync", map[string]string{"userId": "u1"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		m.assertExpectations(t)
	})

	t.Run("validation failure", func(t *testing.T) {
		router, m := setupTestHandler()
		m.sync.On("SyncRepositoriesFromGitHub", mock.Anything, "u1", mock.Anything).
			Return(&models.SyncResult{Success: false, FailedStep: models.SyncStepValidate},
				apperrors.NewValidationError("repository id is required", nil)).Once()

		w := doRequest(router, http.MethodPost, "/api/v1/repositories/sync",
			SyncRequest{UserID: "u1", Repositories: []*SyncRepository{{Name: "app"}}}, "tok")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		m.assertExpectations(t)
	})

	t.Run("bad body", func(t *testing.T) {
		router, _ := setupTestHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/repositories/sync", bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncRepositories_StoresSyncEnabledByDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := db.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC))
	syncService := github.NewSyncService(nil, store, clock, logger)
	repoService := github.NewRepositoryService(store, logger)
	handler := NewHandler(new(MockCacheService), syncService, repoService, new(MockStatsService), new(MockHealthChecker), logger)
	router := SetupRouter(handler, logger)

	w := doRequest(router, http.MethodPost, "/api/v1/repositories/sync",
		map[string]interface{}{
			"userId":       "u1",
			"repositories": []map[string]string{{"id": "1", "owner": "acme", "name": "app"}},
		}, "tok")
	require.Equal(t, http.StatusOK, w.Code)

	repo, err := store.GetRepository(context.Background(), "u1", "1")
	require.NoError(t, err)
	assert.True(t, repo.SyncEnabled)
}

func TestSetSyncEnabled(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, m := setupTestHandler()
		m.repos.On("SetSyncEnabled", mock.Anything, "u1", "42", false).
			Return(&models.Repository{ID: "42", SyncEnabled: false}, nil).Once()

		w := doRequest(router, http.MethodPut, "/api/v1/repositories/42/sync-enabled",
			map[string]interface{}{"userId": "u1", "syncEnabled": false}, "")
		require.Equal(t, http.StatusOK, w.Code)

		var repo models.Repository
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &repo))
		assert.Equal(t, "42", repo.ID)
		assert.False(t, repo.SyncEnabled)
		m.assertExpectations(t)
	})

	t.Run("flag is required", func(t *testing.T) {
		router, _ := setupTestHandler()
		w := doRequest(router, http.MethodPut, "/api/v1/repositories/42/sync-enabled",
			map[string]interface{}{"userId": "u1"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		router, m := setupTestHandler()
		m.repos.On("SetSyncEnabled", mock.Anything, "u1", "404", true).
			Return(nil, apperrors.NewNotFoundError("repository not found with ID: 404", nil)).Once()

		w := doRequest(router, http.MethodPut, "/api/v1/repositories/404/sync-enabled",
			map[string]interface{}{"userId": "u1", "syncEnabled": true}, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetCacheStats(t *testing.T) {
	router, m := setupTestHandler()
	age := int64(12)
	m.stats.On("GetCacheStats", mock.Anything, "u1").Return(&models.CacheStats{
		UserID:                "u1",
		RepositoryCount:       2,
		CommitCount:           10,
		OldestEntryAgeSeconds: &age,
		HitRatio:              0.75,
		EstimatedSize:         "0.02 MB",
	}, nil).Once()

	w := doRequest(router, http.MethodGet, "/api/v1/cache/stats?userId=u1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.RepositoryCount)
	assert.Equal(t, 10, stats.CommitCount)
	assert.Equal(t, "0.02 MB", stats.EstimatedSize)
	m.assertExpectations(t)

	w = doRequest(router, http.MethodGet, "/api/v1/cache/stats", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, m := setupTestHandler()
		m.health.On("Ping", mock.Anything).Return(nil).Once()

		w := doRequest(router, http.MethodGet, "/health", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("store unreachable", func(t *testing.T) {
		router, m := setupTestHandler()
		m.health.On("Ping", mock.Anything).Return(fmt.Errorf("connection refused")).Once()

		w := doRequest(router, http.MethodGet, "/api/v1/health", nil, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Token abc", "", false},
	}

	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			c.Request.Header.Set("Authorization", tt.header)
		}

		token, err := bearerToken(c)
		if tt.ok {
			assert.NoError(t, err, tt.header)
			assert.Equal(t, tt.token, token)
		} else {
			assert.True(t, apperrors.IsUnauthorized(err), tt.header)
		}
	}
}
