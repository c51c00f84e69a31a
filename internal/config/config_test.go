package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, 3, cfg.Queue.MaxRetries)
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("REDIS_HOST", "redis.internal")
	os.Setenv("MAX_RETRIES", "5")
	defer os.Unsetenv("REDIS_HOST")
	defer os.Unsetenv("MAX_RETRIES")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "redis.internal", cfg.Redis.Host)
	require.Equal(t, 5, cfg.Queue.MaxRetries)
	require.Equal(t, 5, cfg.HTTPClient.MaxRetries)
}

func TestLoadYAMLOverlayThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("redis:\n  host: from-yaml\n  port: 6380\n"), 0o644))

	os.Setenv("REDIS_HOST", "from-env")
	defer os.Unsetenv("REDIS_HOST")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Redis.Host, "environment overrides YAML")
	require.Equal(t, 6380, cfg.Redis.Port, "YAML value kept where env is silent")
}
