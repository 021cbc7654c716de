// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	MusicAPIBaseURL      string        `env:"MUSIC_API_BASE_URL,required"`
	ServerPort           string        `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	CatalogDBPath        string        `env:"CATALOG_DB_PATH" envDefault:"musicvault.db"`
	AssetCachePath       string        `env:"ASSET_CACHE_PATH" envDefault:"assets.db"`
	TempUploadPaths      []string      `env:"TEMP_UPLOAD_PATHS" envSeparator:":" envDefault:"/tmp/musicvault-uploads"`
	TempFileRetention    time.Duration `env:"TEMP_FILE_RETENTION" envDefault:"1h"`
	CleanupInterval      time.Duration `env:"CLEANUP_INTERVAL" envDefault:"15m"`
	NetworkProbeInterval time.Duration `env:"NETWORK_PROBE_INTERVAL" envDefault:"30s"`
	SyncDelay            time.Duration `env:"SYNC_DELAY" envDefault:"5s"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MusicAPIBaseURL == "" {
		return fmt.Errorf("MUSIC_API_BASE_URL is required")
	}

	parsed, err := url.Parse(c.MusicAPIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("MUSIC_API_BASE_URL must be an absolute URL, got: %s", c.MusicAPIBaseURL)
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevel := strings.ToLower(c.LogLevel)
	isValidLevel := false
	for _, level := range validLogLevels {
		if logLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.LogLevel, validLogLevels)
	}

	if len(c.TempUploadPaths) == 0 {
		return fmt.Errorf("TEMP_UPLOAD_PATHS cannot be empty")
	}

	if c.TempFileRetention < 0 {
		return fmt.Errorf("TEMP_FILE_RETENTION cannot be negative")
	}

	return nil
}
