package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Download.MaxConcurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.Download.LaunchDelay)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, ConflictUniquify, cfg.Output.ConflictPolicy)
	assert.Equal(t, "127.0.0.1:8749", cfg.Bridge.ListenAddr)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("POSTGRAB_MAX_CONCURRENT", "5")
	t.Setenv("POSTGRAB_LAUNCH_DELAY", "250ms")
	t.Setenv("POSTGRAB_OUTPUT_DIR", "/tmp/media")
	t.Setenv("POSTGRAB_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 5, cfg.Download.MaxConcurrent)
	assert.Equal(t, 250*time.Millisecond, cfg.Download.LaunchDelay)
	assert.Equal(t, "/tmp/media", cfg.Output.Directory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("POSTGRAB_MAX_CONCURRENT", "not-a-number")
	t.Setenv("POSTGRAB_LAUNCH_DELAY", "-3s")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 3, cfg.Download.MaxConcurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.Download.LaunchDelay)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
download:
  max_concurrent: 2
  launch_delay: 1s
output:
  directory: /data/downloads
  conflict_policy: overwrite
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 2, cfg.Download.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.Download.LaunchDelay)
	assert.Equal(t, "/data/downloads", cfg.Output.Directory)
	assert.Equal(t, ConflictOverwrite, cfg.Output.ConflictPolicy)
	// untouched sections keep defaults
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadFromFileMissingPathIsError(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile("/does/not/exist.yaml"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Download.MaxConcurrent = 0 }},
		{"excessive concurrency", func(c *Config) { c.Download.MaxConcurrent = 11 }},
		{"negative launch delay", func(c *Config) { c.Download.LaunchDelay = -time.Second }},
		{"negative retries", func(c *Config) { c.Retry.MaxAttempts = -1 }},
		{"empty output dir", func(c *Config) { c.Output.Directory = "" }},
		{"bad conflict policy", func(c *Config) { c.Output.ConflictPolicy = "rename" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPrecedenceFlagsOverEnv(t *testing.T) {
	t.Setenv("POSTGRAB_OUTPUT_DIR", "/from/env")

	cfg, err := Load("", map[string]interface{}{"output": "/from/flag"})
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Output.Directory)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")

	cfg := DefaultConfig()
	cfg.Download.MaxConcurrent = 7
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 7, loaded.Download.MaxConcurrent)
}
