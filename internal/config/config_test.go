package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "simulate", cfg.Engine)
	assert.Equal(t, 2*time.Minute, cfg.EngineTimeout)
	assert.Equal(t, 24*time.Hour, cfg.ReconcileWindow)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TEST_WEBHOOK", "https://n8n.example.com/webhook/audit")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
engine:
  kind: http
  webhook_url: ${TEST_WEBHOOK}
  timeout: 30s
reconcile:
  window: 6h
telemetry:
  enabled: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "http", cfg.Engine)
	assert.Equal(t, "https://n8n.example.com/webhook/audit", cfg.WebhookURL)
	assert.Equal(t, 30*time.Second, cfg.EngineTimeout)
	assert.Equal(t, 6*time.Hour, cfg.ReconcileWindow)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoadRejectsHTTPEngineWithoutURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENGINE", "http")
	t.Setenv("N8N_WEBHOOK_URL", "")
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RECONCILE_WINDOW", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
}
