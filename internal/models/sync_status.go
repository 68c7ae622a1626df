package models

// Sync steps reported in SyncResult.FailedStep
const (
	SyncStepValidate = "validate"
	SyncStepFetch    = "fetch"
	SyncStepUpsert   = "upsert"
	SyncStepReload   = "reload"
)

// SyncResult is the outcome of an explicit repository sync. Synced counts
// the repositories written by this sync; Repositories is the user's full
// stored set afterwards.
type SyncResult struct {
	Success      bool          `json:"success"`
	Synced       int           `json:"synced"`
	Repositories []*Repository `json:"repositories"`
	Error        string        `json:"error,omitempty"`
	FailedStep   string        `json:"failedStep,omitempty"`
}
