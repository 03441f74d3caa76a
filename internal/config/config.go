package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Backends
	RedisURL    string // empty → in-memory KV + publisher
	DatabaseURL string // empty → in-memory account/transaction stores

	// Import processing defaults (caller-overridable per job)
	BatchSize    int
	BatchDelay   time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	DedupeThresh int

	// Job bookkeeping
	JobTTL         time.Duration // expiry on the persisted job record
	ActiveJobGrace time.Duration // how long terminal jobs linger in the active set
	JobTimeout     time.Duration // 0 = no overall job timeout

	// Concurrency
	MaxConcurrentImports int

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		BatchSize:    getEnvInt("IMPORT_BATCH_SIZE", 20),
		BatchDelay:   getEnvDuration("IMPORT_BATCH_DELAY", 200*time.Millisecond),
		MaxRetries:   getEnvInt("IMPORT_MAX_RETRIES", 3),
		RetryDelay:   getEnvDuration("IMPORT_RETRY_DELAY", 500*time.Millisecond),
		DedupeThresh: getEnvInt("IMPORT_DEDUPE_THRESHOLD", 60),

		JobTTL:         getEnvDuration("IMPORT_JOB_TTL", time.Hour),
		ActiveJobGrace: getEnvDuration("IMPORT_ACTIVE_JOB_GRACE", 10*time.Minute),
		JobTimeout:     getEnvDuration("IMPORT_JOB_TIMEOUT", 0),

		MaxConcurrentImports: getEnvInt("MAX_CONCURRENT_IMPORTS", 4),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
