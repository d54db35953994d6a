// Package api is the Request Gateway: chi-based HTTP routing, session
// gating, body-size limits, and the JSON/binary boundary over the
// catalog/auth/upload/download packages.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pineappleswan/treasury/internal/logger"
)

// Server wraps an http.Server built around NewRouter's handler, with
// graceful shutdown safe to call once or concurrently with Start.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer constructs a Server listening on deps.Port with handler as its
// root handler. The server is created stopped; call Start to serve.
func NewServer(port int, handler http.Handler) *Server {
	return &Server{
		port: port,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 0, // uploads/downloads may run long; bounded by idle timeout instead
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves until ctx is cancelled, then gracefully shuts down within
// shutdownTimeout.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("gateway shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("gateway failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("gateway shutdown error: %w", err)
			logger.Error("gateway shutdown error", "error", err)
			return
		}
		logger.Info("gateway stopped gracefully")
	})
	return shutdownErr
}
