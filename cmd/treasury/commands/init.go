package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pineappleswan/treasury/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file with a freshly generated secret",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "config.yaml"
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	secret := make([]byte, 64)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}

	cfg := &config.Config{Secret: hex.EncodeToString(secret)}
	config.ApplyDefaults(cfg)
	cfg.DevelopmentMode = true

	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cmd.Printf("Configuration written to %s\n", path)
	cmd.Println("A random secret was generated for development use.")
	cmd.Println("Generate a new one for production with: openssl rand -hex 64")
	return nil
}
