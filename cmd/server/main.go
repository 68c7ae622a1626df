package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-cache/internal/api"
	"github.com/Kamar-Folarin/repo-cache/internal/cache"
	"github.com/Kamar-Folarin/repo-cache/internal/config"
	"github.com/Kamar-Folarin/repo-cache/internal/db"
	"github.com/Kamar-Folarin/repo-cache/internal/github"

	_ "github.com/Kamar-Folarin/repo-cache/docs"
)

// @title Repo Cache API
// @version 1.0
// @description Caching layer over GitHub repositories and commits
// @contact.name API Support
// @contact.url http://github.com/Kamar-Folarin
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @host localhost:8080
// @BasePath /api/v1
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	clock := clockwork.NewRealClock()

	githubClient, err := github.NewGitHubClient(cfg.GitHub, logger)
	if err != nil {
		logger.Fatalf("Failed to create GitHub client: %v", err)
	}

	counters := cache.NewCounters()
	stats := cache.NewStatsAggregator(store, counters, clock)
	orchestrator := cache.NewOrchestrator(store, githubClient, clock, counters, logger,
		cache.WithDefaults(cfg.Cache.Policy()),
		cache.WithWorkers(cfg.Cache.Workers),
		cache.WithWindowRetention(cfg.Cache.WindowRetention),
		cache.WithStats(stats),
	)

	syncService := github.NewSyncService(orchestrator, store, clock, logger)
	repositoryService := github.NewRepositoryService(store, logger)

	handler := api.NewHandler(orchestrator, syncService, repositoryService, stats, store, logger)
	router := api.SetupRouter(handler, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":      cfg.Port,
			"db_driver": cfg.DBDriver,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server exited properly")
}

func openStore(cfg *config.Config, logger *logrus.Logger) (db.Store, error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Warn("Using in-memory store, cached data is lost on restart")
		return db.NewMemoryStore(), nil
	}

	store, err := db.Open(cfg.DBDriver, cfg.DBConnectionString, logger)
	if err != nil {
		return nil, err
	}

	// Run migrations with retry logic
	if err := retry(3, 5*time.Second, store.Migrate); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// retry retries a function up to a certain number of attempts with a delay between attempts
func retry(attempts int, sleep time.Duration, fn func() error) error {
	if err := fn(); err != nil {
		if attempts--; attempts > 0 {
			time.Sleep(sleep)
			return retry(attempts, sleep, fn)
		}
		return err
	}
	return nil
}
