package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/tapestry/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 3*time.Second, cfg.ReconnectWait.Std())
	assert.Equal(t, 100, cfg.LogLimit)
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "tapestry.yaml", `
backend: http://st.local:7070
reconnect_wait: 500ms
log_limit: 20
redis:
  addr: localhost:6379
redact: [password, token]
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://st.local:7070", cfg.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectWait.Std())
	assert.Equal(t, 20, cfg.LogLimit)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "tapestry:log", cfg.Redis.Key, "unset keys keep their default")
	assert.Equal(t, 100*time.Millisecond, cfg.RateRefresh.Std())
	assert.Equal(t, []string{"password", "token"}, cfg.Redact)
}

func TestLoad_JSON(t *testing.T) {
	path := write(t, "tapestry.json", `{"listen": ":9090", "frame_interval": "0s"}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, time.Duration(0), cfg.FrameInterval.Std())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Bad Duration", "reconnect_wait: soon"},
		{"Zero Limit", "log_limit: 0"},
		{"Empty Backend", `backend: ""`},
		{"Not YAML", "backend: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(write(t, "tapestry.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}
