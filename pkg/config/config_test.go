package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validSecret() string {
	return strings.Repeat("ab", 64) // 128 hex chars == 64 bytes
}

// missingConfigPath points Load at a config file that does not exist, so
// it falls back to environment variables and defaults without touching
// the process's current directory.
func missingConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestLoad_DefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("TREASURY_SECRET", validSecret())
	t.Setenv("TREASURY_PORT", "9999")

	cfg, err := Load(missingConfigPath(t))
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Port)
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, "databases/userdata.db", cfg.DatabasePath)
}

func TestLoad_DevelopmentModeForcesInsecureCookies(t *testing.T) {
	t.Setenv("TREASURY_SECRET", validSecret())
	t.Setenv("TREASURY_DEVELOPMENT_MODE", "true")
	t.Setenv("TREASURY_SECURE_COOKIES", "true")

	cfg, err := Load(missingConfigPath(t))
	require.NoError(t, err)
	require.False(t, cfg.SecureCookies)
}

// TestLoad_BareNameEnvCompatibility verifies the wire-level bare env names
// (PORT, SECRET, ...) work without the TREASURY_ prefix.
func TestLoad_BareNameEnvCompatibility(t *testing.T) {
	t.Setenv("SECRET", validSecret())
	t.Setenv("PORT", "8123")
	t.Setenv("SECURE_COOKIES", "true")

	cfg, err := Load(missingConfigPath(t))
	require.NoError(t, err)
	require.Equal(t, 8123, cfg.Port)
	require.True(t, cfg.SecureCookies)
}

// TestLoad_PrefixedEnvTakesPrecedenceOverBareName verifies TREASURY_PORT
// wins when both the prefixed and bare names are set.
func TestLoad_PrefixedEnvTakesPrecedenceOverBareName(t *testing.T) {
	t.Setenv("TREASURY_SECRET", validSecret())
	t.Setenv("TREASURY_PORT", "9001")
	t.Setenv("PORT", "1234")

	cfg, err := Load(missingConfigPath(t))
	require.NoError(t, err)
	require.Equal(t, 9001, cfg.Port)
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("TREASURY_SECRET", "deadbeef")

	_, err := Load(missingConfigPath(t))
	require.Error(t, err)
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nsecret: \""+validSecret()+"\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)
}
