package lifecycle

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pineappleswan/treasury/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Port:                 0,
		Secret:               strings.Repeat("ab", 64),
		DatabasePath:         filepath.Join(dir, "catalog.db"),
		StorageDir:           filepath.Join(dir, "storage"),
		UploadTempDir:        filepath.Join(dir, "uploads"),
		ShutdownTimeout:      time.Second,
		SessionTTL:           time.Hour,
		SessionSweepInterval: time.Hour,
		UploadIdleTimeout:    time.Hour,
		UploadSweepInterval:  time.Hour,
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestStart_CreatesDirectoriesAndShutsDownCleanly(t *testing.T) {
	cfg := testConfig(t)

	sys, err := Start(cfg)
	require.NoError(t, err)

	require.DirExists(t, cfg.StorageDir)
	require.DirExists(t, cfg.UploadTempDir)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sys.Shutdown(ctx))

	// Shutdown is idempotent.
	require.NoError(t, sys.Shutdown(ctx))
}
