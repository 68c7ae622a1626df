package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverMemory   = "memory"
)

type Config struct {
	Port               string
	DBDriver           string
	DBConnectionString string
	LogLevel           logrus.Level
	GitHub             *GitHubConfig
	Cache              *CacheConfig
}

func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	driver := getEnv("DB_DRIVER", DriverPostgres)
	dbConnStr := getEnv("DB_CONNECTION_STRING", "")

	switch driver {
	case DriverPostgres, DriverPGX:
		if dbConnStr == "" {
			return nil, fmt.Errorf("DB_CONNECTION_STRING is required for driver %q", driver)
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	github, err := loadGitHubConfig()
	if err != nil {
		return nil, err
	}

	cache, err := loadCacheConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:               port,
		DBDriver:           driver,
		DBConnectionString: dbConnStr,
		LogLevel:           level,
		GitHub:             github,
		Cache:              cache,
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getDuration accepts Go duration strings ("90s", "5m") or plain seconds.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}
