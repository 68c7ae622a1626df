package github

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-cache/internal/db"
	"github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

// RepositoryServiceImpl implements the RepositoryService interface
type RepositoryServiceImpl struct {
	store  db.Store
	logger *logrus.Logger
}

// NewRepositoryService creates a new repository service
func NewRepositoryService(store db.Store, logger *logrus.Logger) *RepositoryServiceImpl {
	return &RepositoryServiceImpl{
		store:  store,
		logger: logger,
	}
}

// ListRepositories returns the user's stored repositories
func (s *RepositoryServiceImpl) ListRepositories(ctx context.Context, userID string) ([]*models.Repository, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId is required", nil)
	}
	return s.store.ListRepositories(ctx, userID)
}

// SetSyncEnabled toggles commit fetching for one repository
func (s *RepositoryServiceImpl) SetSyncEnabled(ctx context.Context, userID, repoID string, enabled bool) (*models.Repository, error) {
	if userID == "" || repoID == "" {
		return nil, errors.NewValidationError("userId and repository id are required", nil)
	}

	if err := s.store.SetRepositorySyncEnabled(ctx, userID, repoID, enabled); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("repository not found with ID: %s", repoID), err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"repository":   repoID,
		"sync_enabled": enabled,
	}).Info("Updated repository sync flag")

	return s.store.GetRepository(ctx, userID, repoID)
}
