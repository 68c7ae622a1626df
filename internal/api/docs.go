package api

import (
	"time"

	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

// ErrorResponse represents an API error
// @Description Error response from the API
type ErrorResponse struct {
	// Error message
	Error string `json:"error" example:"rate limit exceeded"`
	// Error category
	Type string `json:"type" example:"RATE_LIMIT" enums:"INVALID_INPUT,UNAUTHORIZED,RATE_LIMIT,TRANSIENT,NOT_FOUND,STORAGE,INTERNAL"`
}

// RepositoryListResponse is the body of GET /repositories
type RepositoryListResponse struct {
	Repositories []*models.Repository `json:"repositories"`
	Metadata     models.CacheMeta     `json:"metadata"`
}

// SyncRequest is the body of POST /repositories/sync. When Repositories is
// omitted the user's repositories are fetched from GitHub first.
type SyncRequest struct {
	UserID       string            `json:"userId" example:"u1"`
	Repositories []*SyncRepository `json:"repositories,omitempty"`
}

// SyncRepository is one repository in a sync request. SyncEnabled defaults
// to true when omitted.
type SyncRepository struct {
	ID          string    `json:"id" example:"1296269"`
	Owner       string    `json:"owner,omitempty" example:"octocat"`
	Name        string    `json:"name,omitempty" example:"Hello-World"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	Language    string    `json:"language,omitempty"`
	URL         string    `json:"url,omitempty" example:"https://github.com/octocat/Hello-World"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	UpdatedAt   time.Time `json:"updatedAt"`
	SyncEnabled *bool     `json:"syncEnabled,omitempty"`
}

func (r SyncRequest) toRepositories() []*models.Repository {
	out := make([]*models.Repository, len(r.Repositories))
	for i, in := range r.Repositories {
		if in == nil {
			continue
		}
		syncEnabled := true
		if in.SyncEnabled != nil {
			syncEnabled = *in.SyncEnabled
		}
		out[i] = &models.Repository{
			ID:                in.ID,
			Owner:             in.Owner,
			Name:              in.Name,
			Description:       in.Description,
			IsPrivate:         in.IsPrivate,
			Language:          in.Language,
			URL:               in.URL,
			Stars:             in.Stars,
			Forks:             in.Forks,
			UpstreamUpdatedAt: in.UpdatedAt,
			SyncEnabled:       syncEnabled,
		}
	}
	return out
}

// SyncResponse reports the outcome of an explicit sync
type SyncResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message" example:"Synced 2 repositories"`
	Repositories []*models.Repository `json:"repositories"`
	Count        int                  `json:"count" example:"2"`
}

// SyncEnabledRequest is the body of PUT /repositories/{id}/sync-enabled
type SyncEnabledRequest struct {
	UserID      string `json:"userId" example:"u1"`
	SyncEnabled *bool  `json:"syncEnabled" example:"false"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}
