package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/agenthub-platform/agenthub/internal/model"
)

// Config holds all configuration for the server
type Config struct {
	// Server settings
	Port        int
	CORSOrigins []string

	// Database
	DatabaseDSN    string
	DatabaseDriver string // "postgres" or "sqlite", auto-detected from DSN

	// Authentication
	AuthEnabled bool   // If false, every request runs as the dev user (default: false)
	DevUserID   string // Fixed identity used when auth is disabled

	// External execution server (agent create/update/invoke happens there)
	AgentServerURL string

	// Cache
	RedisURL string // Empty means in-process memory cache

	// Optional hex-encoded 32-byte key. When set, agent env var values are
	// encrypted at rest.
	EnvVarEncryptionKey string

	// Logging
	LogLevel  string
	LogFormat string // "console" or "json"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Server
	cfg.Port = getEnvInt("PORT", 8080)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"})

	// Database
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "sqlite3://./agenthub.db")
	cfg.DatabaseDriver = detectDriver(cfg.DatabaseDSN)

	// Authentication - defaults to disabled (dev user mode)
	cfg.AuthEnabled = getEnvBool("AUTH_ENABLED", false)
	cfg.DevUserID = getEnv("DEV_USER_ID", model.DevUserID)

	// External execution server
	cfg.AgentServerURL = strings.TrimSuffix(getEnv("FLASK_SERVER_URL", "http://localhost:5000"), "/")
	if cfg.AgentServerURL == "" {
		return nil, fmt.Errorf("FLASK_SERVER_URL must not be empty")
	}

	// Cache
	cfg.RedisURL = getEnv("REDIS_URL", "")

	// Secrets
	cfg.EnvVarEncryptionKey = getEnv("ENV_VAR_ENCRYPTION_KEY", "")

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	return cfg, nil
}

// detectDriver determines the database driver from DSN
func detectDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.HasPrefix(dsn, "sqlite3://") || strings.HasPrefix(dsn, "sqlite://") {
		return "sqlite"
	}
	// Default to sqlite for file paths
	if strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite") || dsn == ":memory:" {
		return "sqlite"
	}
	return "postgres"
}

// CleanDSN removes the driver prefix from DSN for database/sql
func (c *Config) CleanDSN() string {
	dsn := c.DatabaseDSN
	dsn = strings.TrimPrefix(dsn, "postgres://")
	dsn = strings.TrimPrefix(dsn, "postgresql://")
	dsn = strings.TrimPrefix(dsn, "sqlite3://")
	dsn = strings.TrimPrefix(dsn, "sqlite://")

	// For postgres, add the prefix back
	if c.DatabaseDriver == "postgres" {
		return "postgres://" + dsn
	}
	return dsn
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
