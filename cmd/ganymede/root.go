package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - policy rollout governance engine",
	Long: `Ganymede is a policy rollout governance engine.

It manages if-trigger-then-action policies through a confidence-gated
promotion ladder, providing:
  - Shadow, candidate, and promoted rollout modes with automatic promotion
  - A managed-entity lifecycle state machine with audited transitions
  - Pure blast-radius simulation gating risky candidate actions
  - An append-only, replayable audit log of every state change

For more information, visit: https://github.com/governor-hq/ganymede`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
