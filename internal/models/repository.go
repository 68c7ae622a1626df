package models

import "time"

// Repository is a source-control repository as cached for one user.
// Identity is (UserID, ID).
type Repository struct {
	UserID            string    `json:"userId"`
	ID                string    `json:"id"`
	Owner             string    `json:"owner"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	IsPrivate         bool      `json:"isPrivate"`
	Language          string    `json:"language,omitempty"`
	URL               string    `json:"url"`
	Stars             int       `json:"stars"`
	Forks             int       `json:"forks"`
	UpstreamUpdatedAt time.Time `json:"updatedAt"`
	SyncEnabled       bool      `json:"syncEnabled"`
	CachedAt          time.Time `json:"cachedAt"`
}

// FullName returns "owner/name".
func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}
