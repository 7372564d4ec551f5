package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aira.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Runtime.DefaultListen, cfg.Server.Listen)
	assert.Equal(t, "https://aira-metrics.onwavemaker.com", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 0, cfg.API.Retries)
	assert.Equal(t, "post", cfg.API.SessionsMethod)
	assert.Equal(t, []string{"/sessions/{id}", "/session-details/{id}"}, cfg.API.DetailPaths)
	assert.Equal(t, []string{"cache", "placeholder"}, cfg.Fallback.Sources)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9000"
  dev_proxy: true
api:
  base_url: https://staging.example.com
  timeout: 5s
  retries: 2
  sessions_method: get
fallback:
  sources: [cache]
`)
	t.Setenv("AIRA_API_RETRIES", "3")
	t.Setenv("AIRA_LOG_LEVEL", "debug")

	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.True(t, cfg.Server.DevProxy)
	assert.Equal(t, "https://staging.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.Retries, "environment wins over the file")
	assert.Equal(t, "get", cfg.API.SessionsMethod)
	assert.Equal(t, []string{"cache"}, cfg.Fallback.Sources)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Listen: ":8080"},
			API:      APIConfig{BaseURL: "http://x", SessionsMethod: "post", DetailPaths: []string{"/sessions/{id}"}},
			Fallback: FallbackConfig{CacheSize: 10},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"method", func(c *Config) { c.API.SessionsMethod = "put" }, "api.sessions_method"},
		{"detail path", func(c *Config) { c.API.DetailPaths = []string{"/sessions"} }, "lacks {id}"},
		{"retries", func(c *Config) { c.API.Retries = -1 }, "api.retries"},
		{"auth client", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.SessionSecret = "0123456789abcdef0123456789abcdef"
		}, "google_client_id"},
		{"auth secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.GoogleClientID = "id"
			c.Auth.SessionSecret = "short"
		}, "session_secret"},
		{"cache size", func(c *Config) { c.Fallback.CacheSize = 0 }, "cache_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
