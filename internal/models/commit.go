package models

import "time"

const (
	CommitStatusVerified   = "Verified"
	CommitStatusUnverified = "Unverified"
)

// Commit is a single commit in a cached repository. Identity is
// (UserID, RepositoryID, SHA).
type Commit struct {
	UserID       string    `json:"userId"`
	RepositoryID string    `json:"repositoryId"`
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	Author       string    `json:"author"`
	AuthorEmail  string    `json:"authorEmail,omitempty"`
	Date         time.Time `json:"date"`
	URL          string    `json:"url"`
	Status       string    `json:"status,omitempty"`
	CachedAt     time.Time `json:"cachedAt"`
}
