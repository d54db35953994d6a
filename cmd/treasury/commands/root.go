// Package commands implements the treasury CLI: serve, init, and the
// admin console built into serve.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version and Commit are injected by main at build time.
	Version = "dev"
	Commit  = "none"

	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "treasury",
	Short:         "Encrypted personal file storage server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("treasury %s (commit %s)\n", Version, Commit)
		return nil
	},
}
