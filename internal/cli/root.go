// Package cli wires the liftoff commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/pablasso/liftoff/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "liftoff",
	Short:   "Staged application startup orchestrator",
	Long:    `Liftoff runs registered startup tasks through four ordered stages (critical, core, services, ready) with dependency resolution, bounded parallelism, retries, timeouts and fallbacks.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
