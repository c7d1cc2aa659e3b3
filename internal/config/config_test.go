package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QUANTCORE_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, "0 0 6 * * *", cfg.PerformanceSchedule)
	assert.Equal(t, "0 30 6 * * MON", cfg.RiskSchedule)
	assert.False(t, cfg.RunJobsOnStart)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("QUANTCORE_DATA_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MARKET_TIMEZONE", "UTC")
	t.Setenv("RUN_JOBS_ON_START", "true")
	t.Setenv("RISK_SCHEDULE", "0 0 7 * * TUE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.True(t, cfg.RunJobsOnStart)
	assert.Equal(t, "0 0 7 * * TUE", cfg.RiskSchedule)
}
