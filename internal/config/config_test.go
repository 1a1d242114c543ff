package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, 5*time.Second, cfg.DAL.CallTimeout.Std())
	assert.True(t, cfg.DAL.WrapWithCache)
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "syncdal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: staging
dal:
  call_timeout: 2s
  cache:
    max_commit_interval: 750ms
    max_commit_updates: 50
  queue:
    mode: primary-read-all-write
`), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, loadFile(cfg, path))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Staging, cfg.Environment)
	assert.Equal(t, 2*time.Second, cfg.DAL.CallTimeout.Std())
	assert.Equal(t, 750*time.Millisecond, cfg.DAL.Cache.MaxCommitInterval.Std())
	assert.Equal(t, 50, cfg.DAL.Cache.MaxCommitUpdates)
	assert.Equal(t, "primary-read-all-write", cfg.DAL.Queue.Mode)
	// Untouched keys keep their defaults.
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "push-to-back", cfg.DAL.Queue.FailureAction)
}

func TestEnvOverridesWinOverDefaults(t *testing.T) {
	t.Setenv("SYNCDAL_QUEUE_MODE", "all-read-all-write")
	t.Setenv("SYNCDAL_CALL_TIMEOUT", "250ms")
	t.Setenv("SYNCDAL_CACHE_MAX_CACHE_SIZE", "42")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "all-read-all-write", cfg.DAL.Queue.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.DAL.CallTimeout.Std())
	assert.Equal(t, 42, cfg.DAL.Cache.MaxCacheSize)
}

func TestValidateRejectsCrossFieldViolations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DAL.Cache.MinCommitUpdates = 500
	cfg.DAL.Cache.MaxCommitUpdates = 100
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Environment = Production
	cfg.Logging.Level = "debug"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DAL.Queue.Mode = "sometimes-write"
	assert.Error(t, cfg.Validate())
}

func TestDurationDecoding(t *testing.T) {
	var d Duration
	require.NoError(t, d.set("1m30s"))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.set(int(time.Second)))
	assert.Equal(t, time.Second, d.Std())

	assert.Error(t, d.set("not-a-duration"))
}
