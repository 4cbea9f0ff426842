// Package config loads tabdeck configuration from environment variables and
// an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the tabdeck daemon.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Browser launch settings
	LaunchBrowser bool
	ProfileDir    string
	WindowSize    string

	// Storage settings
	DataDir string

	// Shell behavior
	MaxEngines      int
	StaleAfterDays  int
	DebounceMs      int
	SnapshotMs      int
	SearchEndpoint  string
	ViewportWidth   float64
	ViewportSpacing float64
	ViewportMinCard float64

	// API server settings
	BindAddress string
	BindPort    int

	// Logging
	LogLevel   string
	LogFileDir string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:      getEnvOrDefault("TABDECK_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:         getEnvIntOrDefault("TABDECK_CDP_PORT", 9222),
		LaunchBrowser:   getEnvBoolOrDefault("TABDECK_LAUNCH_BROWSER", true),
		ProfileDir:      getEnvOrDefault("TABDECK_PROFILE_DIR", "./tabdeck_data/profile"),
		WindowSize:      getEnvOrDefault("TABDECK_WINDOW_SIZE", "1280,800"),
		DataDir:         getEnvOrDefault("TABDECK_DATA_DIR", "./tabdeck_data"),
		MaxEngines:      getEnvIntOrDefault("TABDECK_MAX_ENGINES", 10),
		StaleAfterDays:  getEnvIntOrDefault("TABDECK_STALE_AFTER_DAYS", 5),
		DebounceMs:      getEnvIntOrDefault("TABDECK_PERSIST_DEBOUNCE_MS", 500),
		SnapshotMs:      getEnvIntOrDefault("TABDECK_SNAPSHOT_TIMEOUT_MS", 200),
		SearchEndpoint:  getEnvOrDefault("TABDECK_SEARCH_ENDPOINT", "https://duckduckgo.com/?q="),
		ViewportWidth:   getEnvFloatOrDefault("TABDECK_VIEWPORT_WIDTH", 1280),
		ViewportSpacing: getEnvFloatOrDefault("TABDECK_VIEWPORT_SPACING", 20),
		ViewportMinCard: getEnvFloatOrDefault("TABDECK_VIEWPORT_MIN_CARD_WIDTH", 220),
		BindAddress:     getEnvOrDefault("TABDECK_BIND_ADDRESS", "127.0.0.1"),
		BindPort:        getEnvIntOrDefault("TABDECK_BIND_PORT", 8715),
		LogLevel:        getEnvOrDefault("TABDECK_LOG_LEVEL", "info"),
		LogFileDir:      getEnvOrDefault("TABDECK_LOG_DIR", "./tabdeck_data/logs"),
	}

	return cfg, nil
}

// CDPURL returns the CDP endpoint used by the chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

// BindAddr returns the API listen address.
func (c *Config) BindAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.BindPort)
}

// SessionPath is the persisted session snapshot file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.json")
}

// BlobDir is where thumbnail and favicon blobs live.
func (c *Config) BlobDir() string {
	return filepath.Join(c.DataDir, "blobs")
}

// StaleAfter converts the staleness threshold to a duration.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// Debounce converts the persistence debounce window to a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// SnapshotTimeout converts the thumbnail capture bound to a duration.
func (c *Config) SnapshotTimeout() time.Duration {
	return time.Duration(c.SnapshotMs) * time.Millisecond
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
