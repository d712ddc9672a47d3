package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Store.BatchSize)
	assert.Equal(t, 120*time.Second, cfg.Store.TraversalTimeout)
	assert.Equal(t, 3600*time.Second, cfg.Store.EnumerationTimeout)
	assert.False(t, cfg.Geocoder.Enabled)
	assert.InDelta(t, 5.0, cfg.Geocoder.RateLimitRPS, 0.001)
	assert.Equal(t, 10*time.Second, cfg.Geocoder.Timeout)
	assert.Equal(t, 3, cfg.Geocoder.RetryMaxAttempts)
	assert.Equal(t, 500, cfg.Geocoder.RetryInitialBackoffMs)
	assert.Equal(t, 30000, cfg.Geocoder.RetryMaxBackoffMs)
	assert.InDelta(t, 2.0, cfg.Geocoder.RetryMultiplier, 0.001)
	assert.InDelta(t, 0.25, cfg.Geocoder.RetryJitterFraction, 0.001)
	assert.Equal(t, 5, cfg.Geocoder.CircuitFailureThreshold)
	assert.Equal(t, 30, cfg.Geocoder.CircuitResetTimeoutSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, 0.5, cfg.Pipeline.BufferKM, 0.001)
	assert.InDelta(t, 0.25, cfg.Pipeline.MergeCandidateBufferKM, 0.001)
	assert.Equal(t, 5, cfg.Pipeline.BatchConcurrency)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: "file:test.db"
log:
  level: debug
  format: console
pipeline:
  buffer_km: 1.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "file:test.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 1.0, cfg.Pipeline.BufferKM, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Store.BatchSize)
	assert.InDelta(t, 0.25, cfg.Pipeline.MergeCandidateBufferKM, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SKICLUSTER_STORE_DRIVER", "postgres")
	t.Setenv("SKICLUSTER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("SKICLUSTER_PIPELINE_BATCH_CONCURRENCY", "9")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Pipeline.BatchConcurrency)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
