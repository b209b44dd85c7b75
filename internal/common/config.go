package common

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Ingest   IngestConfig
	Worker   WorkerConfig
	Server   ServerConfig
	LogLevel slog.Level
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// StorageConfig holds the file-tree locations
type StorageConfig struct {
	Root         string // canonical receipts live under Root/receipts/<RFC>/
	WorkspaceDir string // per-batch extraction workspaces
}

// IngestConfig holds batch-pipeline knobs
type IngestConfig struct {
	ArchiveMaxBytes   int64
	IdentifyWorkers   int
	ValidatePDF       bool
	InitialCredential string
}

// WorkerConfig holds job-queue configuration
type WorkerConfig struct {
	Concurrency    int
	QueueSize      int
	MaxAttempts    int
	RetryBackoff   time.Duration
	ProcessTimeout time.Duration // 0 means no timeout
	PollInterval   time.Duration
	StaleAfter     time.Duration
}

// ServerConfig holds the health endpoint address
type ServerConfig struct {
	HealthAddr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	storageRoot := getEnv("STORAGE_PATH", "./storage")
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Storage: StorageConfig{
			Root:         storageRoot,
			WorkspaceDir: getEnv("WORKSPACE_DIR", filepath.Join(storageRoot, "temp")),
		},
		Ingest: IngestConfig{
			ArchiveMaxBytes:   getEnvAsInt64("ARCHIVE_MAX_BYTES", 2<<30),
			IdentifyWorkers:   getEnvAsInt("IDENTIFY_WORKERS", 4),
			ValidatePDF:       getEnvAsBool("PDF_VALIDATE", false),
			InitialCredential: getEnv("PROVISION_INITIAL_CREDENTIAL", "changeme"),
		},
		Worker: WorkerConfig{
			Concurrency:    getEnvAsInt("WORKER_CONCURRENCY", 2),
			QueueSize:      getEnvAsInt("WORKER_QUEUE_SIZE", 64),
			MaxAttempts:    getEnvAsInt("WORKER_MAX_ATTEMPTS", 3),
			RetryBackoff:   getEnvAsDuration("WORKER_RETRY_BACKOFF", 10*time.Second),
			ProcessTimeout: getEnvAsDuration("WORKER_PROCESS_TIMEOUT", 0),
			PollInterval:   getEnvAsDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			StaleAfter:     getEnvAsDuration("WORKER_STALE_AFTER", 30*time.Minute),
		},
		Server: ServerConfig{
			HealthAddr: getEnv("HEALTH_ADDR", ":8081"),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(value))); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	return c.ValidateLocal()
}

// ValidateLocal validates everything except the database DSN (used with in-memory databases).
func (c *Config) ValidateLocal() error {
	if c.Storage.Root == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_PATH is required", ErrInvalidInput)
	}
	if c.Worker.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKER_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Worker.MaxAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKER_MAX_ATTEMPTS must be positive", ErrInvalidInput)
	}
	if c.Ingest.InitialCredential == "" {
		return NewAppError("CONFIG_ERROR", "PROVISION_INITIAL_CREDENTIAL must not be empty", ErrInvalidInput)
	}
	return nil
}
