// Package config loads runtime configuration from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the server.
type Config struct {
	Env      string
	LogLevel string
	Server   ServerConfig
	Database DatabaseConfig
	Ledger   LedgerConfig
	Jobs     JobsConfig
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains the database connection settings.
// An empty URL selects in-memory storage.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

// LedgerConfig tunes ledger behaviour.
type LedgerConfig struct {
	AllowNegativeStock     bool
	AuditCompressThreshold int
}

// JobsConfig configures request idempotency and background maintenance.
type JobsConfig struct {
	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration
	CleanupInterval    time.Duration
	PoolStatsInterval  time.Duration
}

// Development reports whether the process runs in development mode.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Load reads .env (if any) and the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnv("APP_PORT", "8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Ledger: LedgerConfig{
			AllowNegativeStock:     getEnvBool("ALLOW_NEGATIVE_STOCK", true),
			AuditCompressThreshold: getEnvInt("AUDIT_COMPRESS_THRESHOLD", 10*1024),
		},
		Jobs: JobsConfig{
			IdempotencyEnabled: getEnvBool("IDEMPOTENCY_ENABLED", true),
			IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
			CleanupInterval:    getEnvDuration("CLEANUP_INTERVAL", time.Hour),
			PoolStatsInterval:  getEnvDuration("POOL_STATS_INTERVAL", 5*time.Minute),
		},
	}

	if strings.TrimSpace(cfg.Server.Port) == "" {
		return Config{}, fmt.Errorf("server port must not be empty")
	}
	if cfg.Database.MaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", cfg.Database.MaxConns)
	}

	if cfg.Jobs.CleanupInterval <= 0 {
		return Config{}, fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", cfg.Jobs.CleanupInterval)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
