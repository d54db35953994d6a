// Package lifecycle wires the catalog, auth, upload, and download packages
// together into a running server and owns their startup/shutdown sequence
// and background sweepers.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pineappleswan/treasury/internal/logger"
	"github.com/pineappleswan/treasury/pkg/api"
	"github.com/pineappleswan/treasury/pkg/auth"
	"github.com/pineappleswan/treasury/pkg/catalog"
	"github.com/pineappleswan/treasury/pkg/config"
	"github.com/pineappleswan/treasury/pkg/download"
	"github.com/pineappleswan/treasury/pkg/upload"
)

// System holds every long-lived component the server needs, assembled from
// a loaded Config, plus the background sweepers that keep them tidy.
type System struct {
	Config      *config.Config
	Catalog     *catalog.Store
	Sessions    *auth.SessionStore
	AuthService *auth.Service
	RateLimiter *auth.ClientRateLimiter
	Coordinator *upload.Coordinator
	Streamer    *download.Streamer
	Server      *api.Server

	uploadSweepStop chan struct{}
	cleanedUp       bool
}

// Start ensures the storage/upload directories and catalog exist, wires
// every component, and begins the background sweepers. The caller is
// responsible for calling Shutdown.
func Start(cfg *config.Config) (*System, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.MkdirAll(cfg.UploadTempDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload temp dir: %w", err)
	}

	store, err := catalog.New(catalog.Config{Path: cfg.DatabasePath})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	secret, err := cfg.SecretBytes()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("decode server secret: %w", err)
	}

	sessions := auth.NewSessionStore(cfg.SessionTTL, cfg.SessionSweepInterval)
	authService := auth.NewService(store, sessions, secret)
	rateLimiter := auth.NewClientRateLimiter()

	coordinator, err := upload.NewCoordinator(store, cfg.UploadTempDir, cfg.StorageDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init upload coordinator: %w", err)
	}
	streamer := download.NewStreamer(store, cfg.StorageDir)

	router := api.NewRouter(api.RouterDeps{
		Catalog:          store,
		AuthService:      authService,
		RateLimiter:      rateLimiter,
		Coordinator:      coordinator,
		Streamer:         streamer,
		SecureCookies:    cfg.SecureCookies,
		MaxJSONBodyBytes: int64(cfg.MaxJSONBodyBytes),
		MaxRawBodyBytes:  int64(cfg.MaxRawBodyBytes),
	})
	server := api.NewServer(cfg.Port, router)

	sys := &System{
		Config:          cfg,
		Catalog:         store,
		Sessions:        sessions,
		AuthService:     authService,
		RateLimiter:     rateLimiter,
		Coordinator:     coordinator,
		Streamer:        streamer,
		Server:          server,
		uploadSweepStop: make(chan struct{}),
	}

	go sys.sweepIdleUploads(cfg.UploadSweepInterval, cfg.UploadIdleTimeout)

	return sys, nil
}

// sweepIdleUploads periodically cancels UploadSessions idle past threshold,
// alongside the session-token sweeper already running inside SessionStore.
func (sys *System) sweepIdleUploads(interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sys.uploadSweepStop:
			return
		case <-ticker.C:
			if n := sys.Coordinator.SweepIdle(threshold); n > 0 {
				logger.Info("upload sweep cancelled idle sessions", "count", n)
			}
		}
	}
}

// Serve runs the gateway until ctx is cancelled, then shuts it down within
// the configured timeout.
func (sys *System) Serve(ctx context.Context) error {
	return sys.Server.Start(ctx, sys.Config.ShutdownTimeout)
}

// Shutdown idempotently stops the background sweepers and closes the
// catalog. Safe to call more than once.
func (sys *System) Shutdown(ctx context.Context) error {
	if sys.cleanedUp {
		return nil
	}
	sys.cleanedUp = true

	close(sys.uploadSweepStop)
	sys.Sessions.Stop()

	if err := sys.Server.Stop(ctx); err != nil {
		logger.Error("gateway stop error during shutdown", "error", err)
	}

	if err := sys.Catalog.Close(); err != nil {
		return fmt.Errorf("close catalog: %w", err)
	}
	return nil
}
