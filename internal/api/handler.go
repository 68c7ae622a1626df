package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-cache/internal/cache"
	"github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/github"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
	"github.com/Kamar-Folarin/repo-cache/internal/utils"
)

// CacheService defines the cached read operations
type CacheService interface {
	Load(ctx context.Context, req cache.LoadRequest) (*models.LoadResponse, error)
	GetRepositories(ctx context.Context, userID, token string, cfg models.CacheConfig) (*models.RepositoryResult, error)
}

// StatsService reports cache statistics
type StatsService interface {
	GetCacheStats(ctx context.Context, userID string) (*models.CacheStats, error)
}

// HealthChecker reports whether the store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

var (
	_ CacheService = (*cache.Orchestrator)(nil)
	_ StatsService = (*cache.StatsAggregator)(nil)
)

type Handler struct {
	cacheService      CacheService
	syncService       github.SyncService
	repositoryService github.RepositoryService
	statsService      StatsService
	health            HealthChecker
	logger            *logrus.Logger
}

func NewHandler(
	cacheService CacheService,
	syncService github.SyncService,
	repositoryService github.RepositoryService,
	statsService StatsService,
	health HealthChecker,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		cacheService:      cacheService,
		syncService:       syncService,
		repositoryService: repositoryService,
		statsService:      statsService,
		health:            health,
		logger:            logger,
	}
}

// GetCommits handles GET /commits
// @Summary Get commits in a date range
// @Description Returns commits and repositories for a user, served from cache while fresh and refreshed from GitHub otherwise
// @Tags commits
// @Produce json
// @Security ApiKeyAuth
// @Param userId query string true "User ID"
// @Param startDate query string true "Window start (YYYY-MM-DD or RFC3339)" example("2024-01-01")
// @Param endDate query string true "Window end (YYYY-MM-DD or RFC3339)" example("2024-01-31")
// @Param forceRefresh query bool false "Bypass cache freshness"
// @Param repositoryCacheTime query int false "Repository TTL in seconds" default(300)
// @Param commitCacheTime query int false "Commit TTL in seconds" default(300)
// @Param maxCommitsPerRepo query int false "Newest commits returned per repository" default(5000)
// @Success 200 {object} models.LoadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /commits [get]
func (h *Handler) GetCommits(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		h.respondWithError(c, errors.NewValidationError("userId is required", nil))
		return
	}

	start, end, err := utils.ParseWindow(c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.respondWithError(c, errors.NewValidationError(err.Error(), err))
		return
	}

	cfg, err := cacheConfigFromQuery(c)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	token, err := bearerToken(c)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	resp, err := h.cacheService.Load(c.Request.Context(), cache.LoadRequest{
		UserID: userID,
		Token:  token,
		Window: models.TimeWindow{Start: start, End: end},
		Config: cfg,
	})
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListRepositories handles GET /repositories
// @Summary List repositories
// @Description Returns the user's repositories under the same cache policy as commit reads
// @Tags repositories
// @Produce json
// @Security ApiKeyAuth
// @Param userId query string true "User ID"
// @Param forceRefresh query bool false "Bypass cache freshness"
// @Param repositoryCacheTime query int false "Repository TTL in seconds" default(300)
// @Success 200 {object} RepositoryListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repositories [get]
func (h *Handler) ListRepositories(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		h.respondWithError(c, errors.NewValidationError("userId is required", nil))
		return
	}

	cfg, err := cacheConfigFromQuery(c)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	token, err := bearerToken(c)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	result, err := h.cacheService.GetRepositories(c.Request.Context(), userID, token, cfg)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, RepositoryListResponse{
		Repositories: result.Repositories,
		Metadata:     result.Meta,
	})
}

// SyncRepositories handles POST /repositories/sync
// @Summary Sync repositories now
// @Description Upserts the given repositories, or fetches them from GitHub when none are given, bypassing cache freshness
// @Tags repositories
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SyncRequest true "Repositories to sync"
// @Success 200 {object} SyncResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repositories/sync [post]
func (h *Handler) SyncRepositories(c *gin.Context) {
	token, err := bearerToken(c)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, errors.NewValidationError("invalid request body", err))
		return
	}
	if req.UserID == "" {
		h.respondWithError(c, errors.NewValidationError("userId is required", nil))
		return
	}

	var result *models.SyncResult
	if req.Repositories == nil {
		result, err = h.syncService.SyncFromOrigin(c.Request.Context(), req.UserID, token)
	} else {
		result, err = h.syncService.SyncRepositoriesFromGitHub(c.Request.Context(), req.UserID, req.toRepositories())
	}
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, SyncResponse{
		Success:      result.Success,
		Message:      fmt.Sprintf("Synced %d repositories", result.Synced),
		Repositories: result.Repositories,
		Count:        result.Synced,
	})
}

// SetSyncEnabled handles PUT /repositories/:id/sync-enabled
// @Summary Toggle commit syncing for a repository
// @Tags repositories
// @Accept json
// @Produce json
// @Param id path string true "Repository ID"
// @Param request body SyncEnabledRequest true "Sync flag"
// @Success 200 {object} models.Repository
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repositories/{id}/sync-enabled [put]
func (h *Handler) SetSyncEnabled(c *gin.Context) {
	var req SyncEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, errors.NewValidationError("invalid request body", err))
		return
	}
	if req.UserID == "" || req.SyncEnabled == nil {
		h.respondWithError(c, errors.NewValidationError("userId and syncEnabled are required", nil))
		return
	}

	repo, err := h.repositoryService.SetSyncEnabled(c.Request.Context(), req.UserID, c.Param("id"), *req.SyncEnabled)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, repo)
}

// GetCacheStats handles GET /cache/stats
// @Summary Get cache statistics
// @Tags cache
// @Produce json
// @Param userId query string true "User ID"
// @Success 200 {object} models.CacheStats
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /cache/stats [get]
func (h *Handler) GetCacheStats(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		h.respondWithError(c, errors.NewValidationError("userId is required", nil))
		return
	}

	stats, err := h.statsService.GetCacheStats(c.Request.Context(), userID)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Health handles GET /health
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// respondWithError maps err onto an HTTP status and writes an ErrorResponse
func (h *Handler) respondWithError(c *gin.Context, err error) {
	status := statusFor(err)
	errType := errors.TypeOf(err)

	if rle, ok := errors.AsRateLimit(err); ok {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rle.ResetTime)))
	}

	entry := h.logger.WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"status":     status,
		"error_type": errType,
		"request_id": c.GetString(requestIDKey),
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.JSON(status, ErrorResponse{Error: err.Error(), Type: string(errType)})
}

func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrInvalidInput:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func retryAfterSeconds(reset time.Time) int {
	secs := int(math.Ceil(time.Until(reset).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.NewUnauthorizedError("missing Authorization header", nil)
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.NewUnauthorizedError("malformed Authorization header, expected Bearer token", nil)
	}
	return token, nil
}

// cacheConfigFromQuery reads per-request cache overrides. Unset values are
// left zero so the orchestrator applies its defaults.
func cacheConfigFromQuery(c *gin.Context) (models.CacheConfig, error) {
	var cfg models.CacheConfig

	if v := c.Query("forceRefresh"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.NewValidationError("forceRefresh must be a boolean", err)
		}
		cfg.ForceRefresh = force
	}

	repoTTL, err := positiveInt(c, "repositoryCacheTime")
	if err != nil {
		return cfg, err
	}
	cfg.RepositoryTTL = time.Duration(repoTTL) * time.Second

	commitTTL, err := positiveInt(c, "commitCacheTime")
	if err != nil {
		return cfg, err
	}
	cfg.CommitTTL = time.Duration(commitTTL) * time.Second

	cfg.MaxCommitsPerRepo, err = positiveInt(c, "maxCommitsPerRepo")
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func positiveInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.NewValidationError(fmt.Sprintf("%s must be a positive integer", name), err)
	}
	return n, nil
}
