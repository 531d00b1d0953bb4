package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSupabaseSettings(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "SUPABASE_URL")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TICKER_INTERVAL", "30s")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://proj.supabase.co", cfg.Supabase.URL)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	require.Equal(t, 30*time.Second, cfg.Ticker.Interval)
	// Untouched settings keep their defaults.
	require.Equal(t, "info", cfg.Logging.Level)
	require.True(t, cfg.RateLimit.Enabled)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "river.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
supabase:
  url: https://file.supabase.co
  anon_key: file-key
logging:
  level: debug
`), 0o600))

	t.Setenv("SERVER_PORT", "7100")

	cfg, err := Load(path)
	require.NoError(t, err)
	// Environment wins over the file.
	require.Equal(t, 7100, cfg.Server.Port)
	// File wins over defaults.
	require.Equal(t, "https://file.supabase.co", cfg.Supabase.URL)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
	t.Setenv("SERVER_PORT", "-1")

	_, err := Load("")
	require.Error(t, err)
}
