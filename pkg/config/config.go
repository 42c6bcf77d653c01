// Package config provides application configuration management with environment
// variable loading, validation, and sensible defaults. It supports .env files
// for local development and validates all settings on startup to prevent
// runtime configuration errors.
//
// Configuration is loaded from environment variables with the Load() function,
// which returns a validated Config struct or an error if any variable is
// invalid. Unlike a server deployment, the client has no required variables:
// every setting has a default that talks to the hosted backend.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	client := gateway.New(cfg.API, sessions)
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backend selectors accepted by FOODLOG_STORAGE.
const (
	StorageBackendRedis = "redis"
	StorageBackendFile  = "file"
)

// Config holds all configuration for the application. It aggregates all
// configuration sections into a single struct for easy access throughout
// the client.
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Log     LogConfig
	Status  StatusConfig
}

// APIConfig holds settings for the remote prediction/auth backend.
type APIConfig struct {
	BaseURL           string        // Backend base address
	Timeout           time.Duration // Fixed per-request timeout (default: 15s)
	RequestsPerSecond float64       // Client-side politeness limit on outgoing calls
	Burst             int           // Limiter burst size
}

// StorageConfig selects and configures the durable session storage backend.
// Redis gives cross-process visibility of auth changes (several foodlog
// processes behave like browser tabs sharing one origin); the file backend
// needs no daemon but only signals within the current process.
type StorageConfig struct {
	Backend string // "redis" or "file"
	Redis   RedisConfig
	File    FileConfig
}

// RedisConfig holds Redis connection parameters for the session storage
// backend, including authentication, database selection, and pool size.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int // Connection pool size
}

// FileConfig holds the location of the file-backed session store.
type FileConfig struct {
	Path string // JSON file holding session keys (default: ~/.foodlog/session.json)
}

// LogConfig controls logger verbosity.
type LogConfig struct {
	Level string // zerolog level name: trace, debug, info, warn, error
}

// StatusConfig configures the optional local status listener that exposes
// /healthz and /metrics for the running client.
type StatusConfig struct {
	Addr string // Listen address (default: 127.0.0.1:9464)
}

// Load reads and validates configuration from environment variables.
// It attempts to load a .env file if present (for local development) but
// doesn't fail if the file is missing.
//
// Recognized environment variables (all optional):
//   - FOODLOG_API_BASE_URL: backend base address
//   - FOODLOG_API_TIMEOUT: per-request timeout (Go duration)
//   - FOODLOG_API_RPS / FOODLOG_API_BURST: outgoing request limiter
//   - FOODLOG_STORAGE: "redis" or "file"
//   - FOODLOG_REDIS_HOST/PORT/PASSWORD/DB/POOL_SIZE
//   - FOODLOG_SESSION_FILE: path for the file backend
//   - FOODLOG_LOG_LEVEL: zerolog level name
//   - FOODLOG_STATUS_ADDR: status listener address
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error when absent)
	_ = godotenv.Load()

	config := &Config{
		API: APIConfig{
			BaseURL:           getEnv("FOODLOG_API_BASE_URL", "https://backend-dorsa.onrender.com"),
			Timeout:           getEnvAsDuration("FOODLOG_API_TIMEOUT", 15*time.Second),
			RequestsPerSecond: getEnvAsFloat("FOODLOG_API_RPS", 5),
			Burst:             getEnvAsInt("FOODLOG_API_BURST", 5),
		},
		Storage: StorageConfig{
			Backend: getEnv("FOODLOG_STORAGE", StorageBackendFile),
			Redis: RedisConfig{
				Host:     getEnv("FOODLOG_REDIS_HOST", "localhost"),
				Port:     getEnv("FOODLOG_REDIS_PORT", "6379"),
				Password: getEnv("FOODLOG_REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("FOODLOG_REDIS_DB", 0),
				PoolSize: getEnvAsInt("FOODLOG_REDIS_POOL_SIZE", 10),
			},
			File: FileConfig{
				Path: getEnv("FOODLOG_SESSION_FILE", defaultSessionFile()),
			},
		},
		Log: LogConfig{
			Level: getEnv("FOODLOG_LOG_LEVEL", "info"),
		},
		Status: StatusConfig{
			Addr: getEnv("FOODLOG_STATUS_ADDR", "127.0.0.1:9464"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks if all configuration is present and valid. It is called
// automatically by Load() but can also be called independently for tests.
//
// Returns an error describing the first validation failure encountered,
// or nil if all configuration is valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("invalid API base URL: %w", err)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}
	if c.API.RequestsPerSecond <= 0 {
		return fmt.Errorf("API rate limit must be positive")
	}

	switch c.Storage.Backend {
	case StorageBackendRedis:
		if _, err := strconv.Atoi(c.Storage.Redis.Port); err != nil {
			return fmt.Errorf("redis port must be a valid integer: %w", err)
		}
	case StorageBackendFile:
		if c.Storage.File.Path == "" {
			return fmt.Errorf("session file path is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}

// Address returns the Redis server address in "host:port" format.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{
//	    Addr: cfg.Storage.Redis.Address(),
//	})
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// defaultSessionFile returns the per-user default location for the
// file-backed session store. Falls back to the working directory when
// the home directory cannot be determined.
func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "foodlog_session.json"
	}
	return filepath.Join(home, ".foodlog", "session.json")
}

// Helper functions for environment variable parsing

// getEnv retrieves an environment variable with a default fallback.
// Returns the environment variable value if set, otherwise returns defaultValue.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a default fallback.
// If the variable is not set or cannot be parsed as an integer, returns defaultValue.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float64 with a default fallback.
// If the variable is not set or cannot be parsed, returns defaultValue.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration with
// a default fallback. Supports Go duration format: "300ms", "1.5h", "2h45m".
// If the variable is not set or cannot be parsed, returns defaultValue.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
