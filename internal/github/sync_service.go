package github

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-cache/internal/db"
	"github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
	"github.com/Kamar-Folarin/repo-cache/internal/utils"
)

// SyncServiceImpl implements the SyncService interface
type SyncServiceImpl struct {
	refresher RepositoryRefresher
	store     db.Store
	clock     clockwork.Clock
	logger    *logrus.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(refresher RepositoryRefresher, store db.Store, clock clockwork.Clock, logger *logrus.Logger) *SyncServiceImpl {
	return &SyncServiceImpl{
		refresher: refresher,
		store:     store,
		clock:     clock,
		logger:    logger,
	}
}

// SyncRepositoriesFromGitHub validates and upserts repos in one transaction,
// then reloads the user's full set. Applying the same list twice leaves the
// store unchanged apart from cached_at, which records the latest sync.
func (s *SyncServiceImpl) SyncRepositoriesFromGitHub(ctx context.Context, userID string, repos []*models.Repository) (*models.SyncResult, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"action":  "sync_repositories",
		"count":   len(repos),
	})

	normalized, err := normalizeRepositories(userID, repos)
	if err != nil {
		logger.WithError(err).Warn("Rejected repository sync")
		return failedSync(models.SyncStepValidate, err), err
	}

	if err := s.store.UpsertRepositories(ctx, userID, normalized, s.clock.Now()); err != nil {
		logger.WithError(err).Error("Failed to upsert repositories")
		return failedSync(models.SyncStepUpsert, err), err
	}

	stored, err := s.store.ListRepositories(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to reload repositories")
		return failedSync(models.SyncStepReload, err), err
	}

	logger.WithField("stored", len(stored)).Info("Repositories synced")
	return &models.SyncResult{Success: true, Synced: len(normalized), Repositories: stored}, nil
}

// SyncFromOrigin refreshes the user's repositories from upstream, ignoring
// freshness, then returns the full stored set
func (s *SyncServiceImpl) SyncFromOrigin(ctx context.Context, userID, token string) (*models.SyncResult, error) {
	if userID == "" {
		err := errors.NewValidationError("userId is required", nil)
		return failedSync(models.SyncStepValidate, err), err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"action":  "sync_from_origin",
	})

	synced, err := s.refresher.RefreshRepositories(ctx, userID, token)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch repositories for sync")
		return failedSync(models.SyncStepFetch, err), err
	}

	stored, err := s.store.ListRepositories(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to reload repositories")
		return failedSync(models.SyncStepReload, err), err
	}

	logger.WithFields(logrus.Fields{
		"synced": synced,
		"stored": len(stored),
	}).Info("Repositories synced from origin")
	return &models.SyncResult{Success: true, Synced: synced, Repositories: stored}, nil
}

func failedSync(step string, err error) *models.SyncResult {
	return &models.SyncResult{
		Success:      false,
		Repositories: []*models.Repository{},
		Error:        err.Error(),
		FailedStep:   step,
	}
}

// normalizeRepositories checks required fields, fills owner/name from the
// URL when missing and collapses duplicate ids (last one wins).
func normalizeRepositories(userID string, repos []*models.Repository) ([]*models.Repository, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId is required", nil)
	}

	index := make(map[string]int, len(repos))
	out := make([]*models.Repository, 0, len(repos))

	for i, repo := range repos {
		if repo == nil {
			return nil, errors.NewValidationError(fmt.Sprintf("repository %d is null", i), nil)
		}
		if repo.ID == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("repository %d has no id", i), nil)
		}

		r := *repo
		r.UserID = userID
		if r.Owner == "" || r.Name == "" {
			if r.URL == "" {
				return nil, errors.NewValidationError(fmt.Sprintf("repository %s needs owner and name or a url", r.ID), nil)
			}
			owner, name, err := utils.ParseRepoURL(r.URL)
			if err != nil {
				return nil, errors.NewValidationError(fmt.Sprintf("repository %s has an invalid url", r.ID), err)
			}
			if r.Owner == "" {
				r.Owner = owner
			}
			if r.Name == "" {
				r.Name = name
			}
		}
		if r.URL == "" {
			r.URL = utils.RepoURL(r.Owner, r.Name)
		}

		if pos, ok := index[r.ID]; ok {
			out[pos] = &r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, &r)
	}

	return out, nil
}
