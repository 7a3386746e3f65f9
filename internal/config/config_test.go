package config

import (
	"os"
	"path/filepath"
	"testing"

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

	assert.Contains(t, cfg.SEC.UserAgent, "@")
	assert.Equal(t, 30, cfg.HTTP.TimeoutSecs)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, "data/http_cache.db", cfg.Cache.Path)
	assert.True(t, cfg.Sources.OpenInsider)
	assert.True(t, cfg.Sources.SecForm4)
	assert.True(t, cfg.Sources.House)
	assert.True(t, cfg.Sources.Senate)
	assert.Equal(t, "data/house_disclosures", cfg.House.IndexDir)
	assert.Equal(t, "pdftotext", cfg.House.PdfToTextPath)
	assert.Equal(t, "data/congress_members.json", cfg.Roster.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
cache:
  driver: sqlite
sources:
  senate: false
scan:
  tickers: [AAPL, NVDA]
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.False(t, cfg.Sources.Senate)
	assert.Equal(t, []string{"AAPL", "NVDA"}, cfg.Scan.Tickers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.HTTP.TimeoutSecs)
	assert.True(t, cfg.Sources.House)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INSIDER_CACHE_DRIVER", "memory")
	t.Setenv("INSIDER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("INSIDER_SEC_USER_AGENT", "acme research ops@acme.example")
	t.Setenv("INSIDER_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "acme research ops@acme.example", cfg.SEC.UserAgent)
	assert.Equal(t, 3000, cfg.Server.Port)
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
