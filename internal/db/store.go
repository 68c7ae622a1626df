package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-cache/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the persisted cache of repositories and commits. Writes are
// keyed upserts; rows are never deleted by the cache.
type Store interface {
	// Repository operations
	ListRepositories(ctx context.Context, userID string) ([]*models.Repository, error)
	GetRepository(ctx context.Context, userID, repoID string) (*models.Repository, error)
	UpsertRepositories(ctx context.Context, userID string, repos []*models.Repository, cachedAt time.Time) error
	SetRepositorySyncEnabled(ctx context.Context, userID, repoID string, enabled bool) error

	// Commit operations
	ListCommits(ctx context.Context, userID string, repoIDs []string, window models.TimeWindow) ([]*models.Commit, error)
	UpsertCommits(ctx context.Context, userID, repoID string, commits []*models.Commit, cachedAt time.Time) error

	// Stats
	GetCacheFootprint(ctx context.Context, userID string) (*models.CacheFootprint, error)

	Ping(ctx context.Context) error
	Close() error
}

type PostgresStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open connects to Postgres through driver ("postgres" for lib/pq or "pgx").
func Open(driver, connectionString string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open(driver, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return NewPostgresStore(db, logger), nil
}

// NewPostgresStore wraps an existing connection pool
func NewPostgresStore(db *sql.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Migrate() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
