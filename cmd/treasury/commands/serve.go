package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pineappleswan/treasury/internal/logger"
	"github.com/pineappleswan/treasury/pkg/config"
	"github.com/pineappleswan/treasury/pkg/lifecycle"
)

var (
	flagPort          int
	flagDev           bool
	flagSecureCookies string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway, the catalog, and the upload/download coordinators",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "HTTP listen port (overrides config)")
	serveCmd.Flags().BoolVar(&flagDev, "dev", false, "enable development mode (forces insecure cookies)")
	serveCmd.Flags().StringVar(&flagSecureCookies, "securecookies", "", "true|false, overrides config")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cfg)

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	sys, err := lifecycle.Start(cfg)
	if err != nil {
		return fmt.Errorf("start system: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- sys.Serve(ctx)
	}()

	go runAdminConsole(sys, cancel)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var lastSigint time.Time
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGINT {
				now := time.Now()
				if !lastSigint.IsZero() && now.Sub(lastSigint) < 2*time.Second {
					logger.Info("second interrupt received, exiting immediately")
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
					_ = sys.Shutdown(shutdownCtx)
					shutdownCancel()
					return nil
				}
				lastSigint = now
			}
			logger.Info("shutdown signal received")
			cancel()
		case err := <-serveDone:
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			shutdownErr := sys.Shutdown(shutdownCtx)
			shutdownCancel()
			if err != nil {
				return err
			}
			return shutdownErr
		}
	}
}

func applyFlagOverrides(cfg *config.Config) {
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagDev {
		cfg.DevelopmentMode = true
		cfg.SecureCookies = false
	}
	if flagSecureCookies != "" {
		cfg.SecureCookies = flagSecureCookies == "true"
	}
}
