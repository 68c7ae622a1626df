package models

import "time"

// CacheSource tells where a returned category of data came from
type CacheSource string

const (
	SourceCache      CacheSource = "cache"
	SourceOrigin     CacheSource = "origin"
	SourceStaleCache CacheSource = "stale-cache"
)

const (
	DefaultRepositoryTTL     = 300 * time.Second
	DefaultCommitTTL         = 300 * time.Second
	DefaultMaxCommitsPerRepo = 5000
)

// CacheConfig carries per-request cache policy. Zero values fall back to
// the configured defaults; it is never persisted.
type CacheConfig struct {
	ForceRefresh      bool
	RepositoryTTL     time.Duration
	CommitTTL         time.Duration
	MaxCommitsPerRepo int
}

// DefaultCacheConfig returns the built-in policy
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		RepositoryTTL:     DefaultRepositoryTTL,
		CommitTTL:         DefaultCommitTTL,
		MaxCommitsPerRepo: DefaultMaxCommitsPerRepo,
	}
}

// Resolve fills unset fields of c from defaults.
func (c CacheConfig) Resolve(defaults CacheConfig) CacheConfig {
	if c.RepositoryTTL <= 0 {
		c.RepositoryTTL = defaults.RepositoryTTL
	}
	if c.CommitTTL <= 0 {
		c.CommitTTL = defaults.CommitTTL
	}
	if c.MaxCommitsPerRepo <= 0 {
		c.MaxCommitsPerRepo = defaults.MaxCommitsPerRepo
	}
	return c
}

// IsFresh reports whether data fetched at fetchedAt is still within ttl at now.
func IsFresh(fetchedAt, now time.Time, ttl time.Duration) bool {
	if fetchedAt.IsZero() {
		return false
	}
	return now.Sub(fetchedAt) < ttl
}

// TimeWindow is an inclusive commit date range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CacheMeta describes one category of returned data
type CacheMeta struct {
	Source      CacheSource `json:"source"`
	LastUpdated *time.Time  `json:"lastUpdated"`
	IsFresh     bool        `json:"isFresh"`
	Count       int         `json:"count"`
}

// RepositoryFailure records a repository whose commits could not be resolved
type RepositoryFailure struct {
	RepositoryID string     `json:"repositoryId"`
	FullName     string     `json:"fullName"`
	ErrorType    string     `json:"errorType"`
	Error        string     `json:"error"`
	RetryAfter   *time.Time `json:"retryAfter,omitempty"`
}

// RepositoryCommitDetail reports how one repository's commits were resolved
type RepositoryCommitDetail struct {
	RepositoryID string      `json:"repositoryId"`
	FullName     string      `json:"fullName"`
	Source       CacheSource `json:"source"`
	IsFresh      bool        `json:"isFresh"`
	Count        int         `json:"count"`
	TotalCached  int         `json:"totalCached"`
	Limited      bool        `json:"limited"`
	Partial      bool        `json:"partial"`
}

// CommitMeta extends CacheMeta with per-repository outcomes
type CommitMeta struct {
	CacheMeta
	Failures          []RepositoryFailure      `json:"failures,omitempty"`
	RepositoryDetails []RepositoryCommitDetail `json:"repositoryDetails"`
}

// RepositoryResult is the repository set returned by the cache
type RepositoryResult struct {
	Repositories []*Repository
	Meta         CacheMeta
}

// CommitResult is the merged commit set returned by the cache
type CommitResult struct {
	Commits []*Commit
	Meta    CommitMeta
	// CacheDecisions and CacheHits count per-repository decisions served
	// from cache, for the performance summary.
	CacheDecisions int
	CacheHits      int
}

// CacheFootprint is the store-side snapshot used for stats
type CacheFootprint struct {
	RepositoryCount    int
	CommitCount        int
	OldestCachedAt     *time.Time
	LastRepositorySync *time.Time
	LastCommitSync     *time.Time
}

// CategoryCounters holds hit/miss counts for one data category
type CategoryCounters struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// CacheStats is a snapshot of the cache for one user
type CacheStats struct {
	UserID                string           `json:"userId"`
	RepositoryCount       int              `json:"repositoryCount"`
	CommitCount           int              `json:"commitCount"`
	OldestEntryAgeSeconds *int64           `json:"oldestEntryAgeSeconds"`
	NewestEntryAgeSeconds *int64           `json:"newestEntryAgeSeconds"`
	LastRepositorySync    *time.Time       `json:"lastRepositorySync"`
	LastCommitSync        *time.Time       `json:"lastCommitSync"`
	Repositories          CategoryCounters `json:"repositories"`
	Commits               CategoryCounters `json:"commits"`
	HitRatio              float64          `json:"hitRatio"`
	EstimatedSize         string           `json:"estimatedSize"`
}

// PerformanceSummary describes how much of one request was served locally
type PerformanceSummary struct {
	UsedCache     bool    `json:"usedCache"`
	CacheHitRatio float64 `json:"cacheHitRatio"`
}

// LoadMetadata accompanies a combined repository and commit read
type LoadMetadata struct {
	Repositories CacheMeta          `json:"repositories"`
	Commits      CommitMeta         `json:"commits"`
	Stats        *CacheStats        `json:"stats,omitempty"`
	Performance  PerformanceSummary `json:"performance"`
}

// LoadResponse is the full result of a commit-range read
type LoadResponse struct {
	Commits      []*Commit     `json:"commits"`
	Repositories []*Repository `json:"repositories"`
	Metadata     LoadMetadata  `json:"metadata"`
}
