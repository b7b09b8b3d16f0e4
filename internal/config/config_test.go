package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Limits.MaxConcurrentJobs)
	assert.Contains(t, cfg.Limits.AllowedDomains, "youtube.com")
	assert.Equal(t, "/data/jobs", cfg.Jobs.BaseDir)
	assert.Equal(t, 3, cfg.Jobs.MaxAttempts)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9999

[limits]
max_concurrent_jobs = 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Limits.MaxConcurrentJobs)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Jobs.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9999\n"), 0o644))
	t.Setenv("STEM_SERVER_PORT", "7777")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoadEnvMultiWordKeys(t *testing.T) {
	t.Setenv("STEM_LIMITS_MAX_CONCURRENT_JOBS", "7")
	t.Setenv("STEM_WORKER_HEALTH_PORT", "9191")
	t.Setenv("STEM_JOBS_BASE_DIR", "/tmp/stems")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Limits.MaxConcurrentJobs)
	assert.Equal(t, 9191, cfg.Worker.HealthPort)
	assert.Equal(t, "/tmp/stems", cfg.Jobs.BaseDir)
}

func TestLoadConvenienceEnvVars(t *testing.T) {
	t.Setenv("STEM_DATABASE_URL", "postgres://example/stem")
	t.Setenv("STEM_REDIS_URL", "redis://example:6379/0")
	t.Setenv("STEM_AUTH_API_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://example/stem", cfg.Database.URL)
	assert.Equal(t, "redis://example:6379/0", cfg.Redis.URL)
	assert.Equal(t, "secret", cfg.Auth.APIKey)
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{}

	assert.Equal(t, 10*time.Minute, cfg.AttemptTimeout())
	assert.Equal(t, 7*24*time.Hour, cfg.CacheTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionMaxAge())
	assert.Equal(t, time.Hour, cfg.RetentionInterval())

	cfg.Jobs.AttemptTimeout = "30s"
	cfg.Cache.TTL = "24h"
	assert.Equal(t, 30*time.Second, cfg.AttemptTimeout())
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL())

	cfg.Jobs.AttemptTimeout = "garbage"
	assert.Equal(t, 10*time.Minute, cfg.AttemptTimeout())
}

func TestRetryDelays(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}, cfg.RetryDelays())

	cfg.Jobs.RetryDelays = []string{"5s", "bogus", "15s"}
	assert.Equal(t, []time.Duration{5 * time.Second, 15 * time.Second}, cfg.RetryDelays())

	cfg.Jobs.RetryDelays = []string{"bogus"}
	assert.Equal(t, []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}, cfg.RetryDelays())
}
