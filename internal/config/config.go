// Package config loads docdex configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Document-processing backend
	BackendURL    string
	UploadTimeout time.Duration

	// Job polling
	PollInterval    time.Duration
	PollMaxAttempts int

	// Batch display
	StallThreshold time.Duration
	RetainWindow   time.Duration

	// SurrealDB metadata store
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		BackendURL:    getEnv("DOCDEX_BACKEND_URL", "http://localhost:8000"),
		UploadTimeout: getEnvDuration("DOCDEX_UPLOAD_TIMEOUT", 120*time.Second),

		PollInterval:    getEnvDuration("DOCDEX_POLL_INTERVAL", time.Second),
		PollMaxAttempts: getEnvInt("DOCDEX_POLL_MAX_ATTEMPTS", 600),

		StallThreshold: getEnvDuration("DOCDEX_STALL_THRESHOLD", 25*time.Second),
		RetainWindow:   getEnvDuration("DOCDEX_RETAIN_WINDOW", 5*time.Second),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8001/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "docdex"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "catalog"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:  getEnv("DOCDEX_LOG_FILE", "/tmp/docdex.log"),
		LogLevel: parseLogLevel(getEnv("DOCDEX_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
