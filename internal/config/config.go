// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the databases (always absolute)
	LogLevel string
	DevMode  bool

	// Timezone used to derive batch target dates. End-of-day data is keyed to
	// the domestic market calendar, not the server clock.
	Timezone string

	// Cron schedules for the two batch runs.
	PerformanceSchedule string
	RiskSchedule        string

	// RunJobsOnStart triggers both batch jobs once at startup, before the
	// scheduler takes over. Useful after downtime.
	RunJobsOnStart bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QUANTCORE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Timezone: getEnv("MARKET_TIMEZONE", "Asia/Seoul"),
		// Daily performance after the EOD price sync window, weekly risk on
		// Monday mornings. Seconds field included (scheduler runs with seconds).
		PerformanceSchedule: getEnv("PERFORMANCE_SCHEDULE", "0 0 6 * * *"),
		RiskSchedule:        getEnv("RISK_SCHEDULE", "0 30 6 * * MON"),
		RunJobsOnStart:      getEnvAsBool("RUN_JOBS_ON_START", false),
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
