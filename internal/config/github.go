package config

import (
	"fmt"
	"time"
)

// GitHubConfig holds GitHub-specific configuration
type GitHubConfig struct {
	APIBaseURL     string
	UserAgent      string
	RequestTimeout time.Duration
	PerPage        int
	MaxCommitPages int
	RateLimit      RateLimitConfig
}

// RateLimitConfig holds retry configuration for transient failures
type RateLimitConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	RetryMultiplier float64
}

// DefaultGitHubConfig returns the default GitHub configuration
func DefaultGitHubConfig() *GitHubConfig {
	return &GitHubConfig{
		APIBaseURL:     "https://api.github.com/",
		UserAgent:      "repo-cache/1.0",
		RequestTimeout: 10 * time.Second,
		PerPage:        100,
		MaxCommitPages: 10,
		RateLimit: RateLimitConfig{
			MaxAttempts:     2,
			InitialBackoff:  500 * time.Millisecond,
			MaxBackoff:      5 * time.Second,
			RetryMultiplier: 2.0,
		},
	}
}

func loadGitHubConfig() (*GitHubConfig, error) {
	cfg := DefaultGitHubConfig()
	cfg.APIBaseURL = getEnv("GITHUB_API_BASE_URL", cfg.APIBaseURL)
	cfg.UserAgent = getEnv("GITHUB_USER_AGENT", cfg.UserAgent)

	var err error
	if cfg.RequestTimeout, err = getDuration("GITHUB_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxCommitPages, err = getInt("GITHUB_MAX_COMMIT_PAGES", cfg.MaxCommitPages); err != nil {
		return nil, err
	}
	if cfg.RateLimit.MaxAttempts, err = getInt("GITHUB_MAX_ATTEMPTS", cfg.RateLimit.MaxAttempts); err != nil {
		return nil, err
	}

	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("GITHUB_REQUEST_TIMEOUT must be positive")
	}
	if cfg.MaxCommitPages < 1 {
		return nil, fmt.Errorf("GITHUB_MAX_COMMIT_PAGES must be at least 1")
	}
	if cfg.RateLimit.MaxAttempts < 1 {
		return nil, fmt.Errorf("GITHUB_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}
