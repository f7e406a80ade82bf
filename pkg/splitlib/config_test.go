package splitlib

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultUpstreamURL, cfg.UpstreamURL)
	assert.Equal(t, 0, cfg.Timeout)
	assert.False(t, cfg.PropagateStatus)
	assert.Equal(t, 32*1024*1024, cfg.BodyLimit())
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
upstream_url: http://localhost:9000/split
timeout: 30
user_agent: splitproxy-test
propagate_status: true
body_limit_mb: 8
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		UpstreamURL:     "http://localhost:9000/split",
		Timeout:         30,
		UserAgent:       "splitproxy-test",
		PropagateStatus: true,
		BodyLimitMB:     8,
	}, cfg)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "upstream_url: http://localhost:9000/split\ntimeout: 30\n")
	t.Setenv("UPSTREAM_URL", "https://splitter.internal/split")
	t.Setenv("HTTP_TIMEOUT", "5")
	t.Setenv("PROPAGATE_STATUS", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://splitter.internal/split", cfg.UpstreamURL)
	assert.Equal(t, 5, cfg.Timeout)
	assert.True(t, cfg.PropagateStatus)
}

func TestLoadConfigIgnoresBadNumbers(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")
	t.Setenv("BODY_LIMIT_MB", "lots")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Timeout)
	assert.Equal(t, 32, cfg.BodyLimitMB)
}

func TestApplyEnvLookup(t *testing.T) {
	bindings := map[string]string{
		"UPSTREAM_URL":     "https://splitter.internal/split",
		"HTTP_TIMEOUT":     "12",
		"PROPAGATE_STATUS": "true",
	}
	lookup := func(key string) (string, bool) {
		v, ok := bindings[key]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv(lookup)
	assert.Equal(t, Config{
		UpstreamURL:     "https://splitter.internal/split",
		Timeout:         12,
		PropagateStatus: true,
		BodyLimitMB:     32,
	}, cfg)

	s, err := NewSplitter(cfg)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, s.Client.Timeout)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = LoadConfig(writeConfig(t, "timeout: [1, 2"))
	assert.ErrorContains(t, err, "syntax error in config file")

	_, err = LoadConfig(writeConfig(t, "upstream_url: ftp://example.com/split"))
	assert.ErrorContains(t, err, "must be http or https")
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	assert.NoError(t, valid.Validate())

	tests := map[string]func(*Config){
		"bad url":       func(c *Config) { c.UpstreamURL = "http://[::1" },
		"no host":       func(c *Config) { c.UpstreamURL = "https:///split" },
		"neg timeout":   func(c *Config) { c.Timeout = -1 },
		"zero body cap": func(c *Config) { c.BodyLimitMB = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
