package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	apperrors "github.com/Kamar-Folarin/repo-cache/internal/errors"
	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

const repositoryColumns = `user_id, id, owner, name, description, is_private, language, url,
	stars, forks, upstream_updated_at, sync_enabled, cached_at`

const commitColumns = `user_id, repository_id, sha, message, author, author_email, date, url,
	status, cached_at`

// ListRepositories returns every cached repository for the user
func (s *PostgresStore) ListRepositories(ctx context.Context, userID string) ([]*models.Repository, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+repositoryColumns+`
		FROM repositories
		WHERE user_id = $1
		ORDER BY upstream_updated_at DESC NULLS LAST, id`, userID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query repositories", err)
	}
	defer rows.Close()

	repos := make([]*models.Repository, 0)
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to scan repository row", err)
		}
		repos = append(repos, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("error iterating repository rows", err)
	}

	return repos, nil
}

func (s *PostgresStore) GetRepository(ctx context.Context, userID, repoID string) (*models.Repository, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+repositoryColumns+`
		FROM repositories
		WHERE user_id = $1 AND id = $2`, userID, repoID)

	repo, err := scanRepository(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("repository not found: "+repoID, err)
		}
		return nil, apperrors.NewStorageError("failed to get repository", err)
	}
	return repo, nil
}

// UpsertRepositories writes repos in a single transaction. sync_enabled is
// taken from the input on insert and left untouched on conflict.
func (s *PostgresStore) UpsertRepositories(ctx context.Context, userID string, repos []*models.Repository, cachedAt time.Time) error {
	if len(repos) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO repositories (`+repositoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, id) DO UPDATE SET
			owner = EXCLUDED.owner,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_private = EXCLUDED.is_private,
			language = EXCLUDED.language,
			url = EXCLUDED.url,
			stars = EXCLUDED.stars,
			forks = EXCLUDED.forks,
			upstream_updated_at = EXCLUDED.upstream_updated_at,
			cached_at = EXCLUDED.cached_at`)
	if err != nil {
		return apperrors.NewStorageError("failed to prepare repository upsert", err)
	}
	defer stmt.Close()

	for _, repo := range repos {
		if _, err := stmt.ExecContext(ctx,
			userID,
			repo.ID,
			repo.Owner,
			repo.Name,
			nullString(repo.Description),
			repo.IsPrivate,
			nullString(repo.Language),
			repo.URL,
			repo.Stars,
			repo.Forks,
			nullTime(repo.UpstreamUpdatedAt),
			repo.SyncEnabled,
			cachedAt.UTC(),
		); err != nil {
			return apperrors.NewStorageError("failed to upsert repository "+repo.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("failed to commit repository upsert", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(repos),
	}).Debug("Upserted repositories")
	return nil
}

func (s *PostgresStore) SetRepositorySyncEnabled(ctx context.Context, userID, repoID string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE repositories SET sync_enabled = $3
		WHERE user_id = $1 AND id = $2`, userID, repoID, enabled)
	if err != nil {
		return apperrors.NewStorageError("failed to update sync flag", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError("failed to read affected rows", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("repository not found: "+repoID, nil)
	}
	return nil
}

// ListCommits returns the user's commits in repoIDs whose date lies within
// window, newest first.
func (s *PostgresStore) ListCommits(ctx context.Context, userID string, repoIDs []string, window models.TimeWindow) ([]*models.Commit, error) {
	commits := make([]*models.Commit, 0)
	if len(repoIDs) == 0 {
		return commits, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commitColumns+`
		FROM commits
		WHERE user_id = $1 AND repository_id = ANY($2) AND date >= $3 AND date <= $4
		ORDER BY date DESC, repository_id, sha`,
		userID, pq.Array(repoIDs), window.Start.UTC(), window.End.UTC())
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query commits", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c      models.Commit
			email  sql.NullString
			status sql.NullString
		)
		if err := rows.Scan(
			&c.UserID,
			&c.RepositoryID,
			&c.SHA,
			&c.Message,
			&c.Author,
			&email,
			&c.Date,
			&c.URL,
			&status,
			&c.CachedAt,
		); err != nil {
			return nil, apperrors.NewStorageError("failed to scan commit row", err)
		}
		c.AuthorEmail = email.String
		c.Status = status.String
		commits = append(commits, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("error iterating commit rows", err)
	}

	return commits, nil
}

func (s *PostgresStore) UpsertCommits(ctx context.Context, userID, repoID string, commits []*models.Commit, cachedAt time.Time) error {
	if len(commits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO commits (`+commitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, repository_id, sha) DO UPDATE SET
			message = EXCLUDED.message,
			author = EXCLUDED.author,
			author_email = EXCLUDED.author_email,
			date = EXCLUDED.date,
			url = EXCLUDED.url,
			status = EXCLUDED.status,
			cached_at = EXCLUDED.cached_at`)
	if err != nil {
		return apperrors.NewStorageError("failed to prepare commit upsert", err)
	}
	defer stmt.Close()

	for _, commit := range commits {
		if _, err := stmt.ExecContext(ctx,
			userID,
			repoID,
			commit.SHA,
			commit.Message,
			commit.Author,
			nullString(commit.AuthorEmail),
			commit.Date.UTC(),
			commit.URL,
			nullString(commit.Status),
			cachedAt.UTC(),
		); err != nil {
			return apperrors.NewStorageError("failed to upsert commit "+commit.SHA, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("failed to commit commit upsert", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"repository": repoID,
		"count":      len(commits),
	}).Debug("Upserted commits")
	return nil
}

func (s *PostgresStore) GetCacheFootprint(ctx context.Context, userID string) (*models.CacheFootprint, error) {
	var (
		fp                         models.CacheFootprint
		repoOldest, repoNewest     sql.NullTime
		commitOldest, commitNewest sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM repositories WHERE user_id = $1),
			(SELECT COUNT(*) FROM commits WHERE user_id = $1),
			(SELECT MIN(cached_at) FROM repositories WHERE user_id = $1),
			(SELECT MAX(cached_at) FROM repositories WHERE user_id = $1),
			(SELECT MIN(cached_at) FROM commits WHERE user_id = $1),
			(SELECT MAX(cached_at) FROM commits WHERE user_id = $1)`, userID).Scan(
		&fp.RepositoryCount,
		&fp.CommitCount,
		&repoOldest,
		&repoNewest,
		&commitOldest,
		&commitNewest,
	)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read cache footprint", err)
	}

	fp.OldestCachedAt = earliest(timePtr(repoOldest), timePtr(commitOldest))
	fp.LastRepositorySync = timePtr(repoNewest)
	fp.LastCommitSync = timePtr(commitNewest)
	return &fp, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (*models.Repository, error) {
	var (
		repo        models.Repository
		description sql.NullString
		language    sql.NullString
		updatedAt   sql.NullTime
	)
	if err := row.Scan(
		&repo.UserID,
		&repo.ID,
		&repo.Owner,
		&repo.Name,
		&description,
		&repo.IsPrivate,
		&language,
		&repo.URL,
		&repo.Stars,
		&repo.Forks,
		&updatedAt,
		&repo.SyncEnabled,
		&repo.CachedAt,
	); err != nil {
		return nil, err
	}
	repo.Description = description.String
	repo.Language = language.String
	if updatedAt.Valid {
		repo.UpstreamUpdatedAt = updatedAt.Time
	}
	return &repo, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
