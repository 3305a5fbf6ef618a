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

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadqual.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Capture.MaxAttempts)
	assert.Equal(t, 2, cfg.Capture.SettleDelaySecs)
	assert.Equal(t, 4, cfg.Capture.RetryDelaySecs)
	assert.True(t, cfg.Capture.Headless)
	assert.Equal(t, 168, cfg.Capture.CacheTTLHours)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, 6, cfg.Qualify.ScoreThreshold)
	assert.InDelta(t, 6.0, cfg.Batch.RequestsPerMinute, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
capture:
  max_attempts: 3
  settle_delay_secs: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Capture.MaxAttempts)
	assert.Equal(t, 1, cfg.Capture.SettleDelaySecs)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Capture.RetryDelaySecs)
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

	t.Setenv("LEADQUAL_STORE_DRIVER", "postgres")
	t.Setenv("LEADQUAL_LOG_LEVEL", "warn")

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

	t.Setenv("LEADQUAL_CAPTURE_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Capture.MaxAttempts)
}

func TestCaptureDurations(t *testing.T) {
	cfg := CaptureConfig{SettleDelaySecs: 2, RetryDelaySecs: 4, LoadTimeoutSecs: 30}
	assert.Equal(t, 2*time.Second, cfg.SettleDelay())
	assert.Equal(t, 4*time.Second, cfg.RetryDelay())
	assert.Equal(t, 30*time.Second, cfg.LoadTimeout())
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

// validDefaults returns a Config that passes batch-mode validation.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "leadqual.db"
	cfg.Capture.MaxAttempts = 10
	cfg.Capture.SettleDelaySecs = 2
	cfg.Capture.RetryDelaySecs = 4
	cfg.Perplexity.Key = "pplx-key"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Qualify.ScoreThreshold = 6
	cfg.Batch.RequestsPerMinute = 6
	return cfg
}

func TestValidateScrape(t *testing.T) {
	cfg := validDefaults()
	cfg.Perplexity.Key = ""
	cfg.Anthropic.Key = ""

	// Scrape mode needs no API keys
	assert.NoError(t, cfg.Validate("scrape"))
}

func TestValidateBatch_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateBatch_MissingKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.Perplexity.Key = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "perplexity.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateBadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("scrape")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateAttemptBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Capture.MaxAttempts = 0

	err := cfg.Validate("scrape")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestValidateScoreThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Qualify.ScoreThreshold = 11

	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "score_threshold")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
