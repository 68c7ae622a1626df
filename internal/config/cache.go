package config

import (
	"fmt"
	"time"

	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

// CacheConfig holds cache policy defaults and worker settings
type CacheConfig struct {
	RepositoryTTL     time.Duration
	CommitTTL         time.Duration
	MaxCommitsPerRepo int
	Workers           int
	// WindowRetention bounds how long a commit window's fetch time is
	// remembered in memory.
	WindowRetention time.Duration
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		RepositoryTTL:     models.DefaultRepositoryTTL,
		CommitTTL:         models.DefaultCommitTTL,
		MaxCommitsPerRepo: models.DefaultMaxCommitsPerRepo,
		Workers:           4,
		WindowRetention:   24 * time.Hour,
	}
}

// Policy returns the per-request defaults derived from c
func (c *CacheConfig) Policy() models.CacheConfig {
	return models.CacheConfig{
		RepositoryTTL:     c.RepositoryTTL,
		CommitTTL:         c.CommitTTL,
		MaxCommitsPerRepo: c.MaxCommitsPerRepo,
	}
}

func loadCacheConfig() (*CacheConfig, error) {
	cfg := DefaultCacheConfig()

	var err error
	if cfg.RepositoryTTL, err = getDuration("REPOSITORY_CACHE_TTL", cfg.RepositoryTTL); err != nil {
		return nil, err
	}
	if cfg.CommitTTL, err = getDuration("COMMIT_CACHE_TTL", cfg.CommitTTL); err != nil {
		return nil, err
	}
	if cfg.MaxCommitsPerRepo, err = getInt("MAX_COMMITS_PER_REPO", cfg.MaxCommitsPerRepo); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getInt("CACHE_WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.WindowRetention, err = getDuration("COMMIT_WINDOW_RETENTION", cfg.WindowRetention); err != nil {
		return nil, err
	}

	if cfg.RepositoryTTL <= 0 || cfg.CommitTTL <= 0 {
		return nil, fmt.Errorf("cache TTLs must be positive")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("CACHE_WORKERS must be at least 1")
	}
	return cfg, nil
}
