// Package config provides configuration for the await service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Resume modes.
const (
	ResumeModeAsync = "async"
	ResumeModeSync  = "sync"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int
	RPCAddr  string // empty disables the JSON-RPC listener

	// Database
	DatabaseURL string

	// Run lifecycle
	ResumeMode      string
	AwaitTimeout    time.Duration // 0 keeps awaiting runs indefinitely
	RunRetention    time.Duration
	MonitorInterval time.Duration

	// Policy
	ResumePolicyFile string

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// Defaults applied when a duration setting is missing or non-positive.
const (
	DefaultMonitorInterval = 500 * time.Millisecond
	DefaultPingInterval    = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultReadTimeout     = 60 * time.Second
)

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
		RPCAddr:          getEnvAllowEmpty("RPC_ADDR", ":8081"),
		DatabaseURL:      getEnv("DATABASE_URL", "file:await.db?cache=shared&mode=rwc"),
		ResumeMode:       strings.ToLower(getEnv("RESUME_MODE", ResumeModeAsync)),
		AwaitTimeout:     time.Duration(getEnvInt("AWAIT_TIMEOUT_MS", 0)) * time.Millisecond,
		RunRetention:     time.Duration(getEnvInt("RUN_RETENTION_MS", 3600000)) * time.Millisecond,
		MonitorInterval:  getEnvPositiveMillis("MONITOR_INTERVAL_MS", DefaultMonitorInterval),
		ResumePolicyFile: getEnv("RESUME_POLICY_FILE", ""),
		PingInterval:     getEnvPositiveMillis("WS_PING_INTERVAL_MS", DefaultPingInterval),
		WriteTimeout:     getEnvPositiveMillis("WS_WRITE_TIMEOUT_MS", DefaultWriteTimeout),
		ReadTimeout:      getEnvPositiveMillis("WS_READ_TIMEOUT_MS", DefaultReadTimeout),
		MaxMessageSize:   int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
	}
	if cfg.ResumeMode != ResumeModeSync {
		cfg.ResumeMode = ResumeModeAsync
	}
	return cfg
}

// SyncResume reports whether runs are driven on the request goroutine.
func (c *Config) SyncResume() bool {
	return c.ResumeMode == ResumeModeSync
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAllowEmpty returns defaultVal only when key is unset.
func getEnvAllowEmpty(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvPositiveMillis reads a duration in milliseconds, falling back to
// defaultVal when the value is unset, malformed or not positive.
func getEnvPositiveMillis(key string, defaultVal time.Duration) time.Duration {
	if ms := getEnvInt(key, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

// PositiveOr returns d, or fallback when d is not positive.
func PositiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
