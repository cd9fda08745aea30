package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "LLAMA_URL", "LLM_BASE_URL", "LLAMA_MODEL", "LLM_MODEL_NAME", "LLM_API_KEY", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, 10, cfg.RateLimit.Limit)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.False(t, cfg.Gateway.CoalesceMisses)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_API_KEY", "sk-test-123")

	content := `
listen: ":9090"
upstream:
  base_url: http://localhost:11434/v1
  model: llama3
  api_key: ${TEST_API_KEY}
  timeout: 10s
cache:
  ttl: 30m
rate_limit:
  limit: 3
  window: 5s
gateway:
  coalesce_misses: true
audit:
  enabled: true
  db_path: audit.db
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, "sk-test-123", cfg.Upstream.APIKey)
	require.Equal(t, "llama3", cfg.Upstream.Model)
	require.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	require.Equal(t, 3, cfg.RateLimit.Limit)
	require.Equal(t, 5*time.Second, cfg.RateLimit.Window)
	require.True(t, cfg.Gateway.CoalesceMisses)
	require.True(t, cfg.Audit.Enabled)
	// Unset keys keep their defaults.
	require.Equal(t, 90, cfg.Audit.RetentionDays)
	require.True(t, cfg.Configured())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("LLM_BASE_URL", "http://fallback:1234/v1")
	t.Setenv("LLAMA_URL", "http://primary:8000/v1")
	t.Setenv("LLM_MODEL_NAME", "fallback-model")
	t.Setenv("LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9090\"\nupstream:\n  model: from-file\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":3000", cfg.Listen)
	require.Equal(t, "http://primary:8000/v1", cfg.Upstream.BaseURL)
	require.Equal(t, "fallback-model", cfg.Upstream.Model)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadNoFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
	require.False(t, cfg.Configured())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Limit = 0
	cfg.Cache.TTL = -time.Second
	cfg.Upstream.BaseURL = "not a url"
	cfg.RateLimit.Redis.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate_limit.limit")
	require.Contains(t, err.Error(), "cache.ttl")
	require.Contains(t, err.Error(), "upstream.base_url")
	require.Contains(t, err.Error(), "rate_limit.redis.addr")
}
