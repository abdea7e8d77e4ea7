// Package main provides the keihi CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/keihibot/keihi/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Best effort; production deployments set real environment variables.
	_ = godotenv.Load()
	logging.Setup()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "keihi",
	Short: "Slack expense-report bot",
	Long: `keihi is a Slack bot that records expenses into per-user Google
Spreadsheets, stores receipts in Google Drive and exports merged monthly
PDF reports.

Configuration comes from environment variables (optionally via .env) plus
an optional keihi.yml for tunables. See 'keihi check' for a configuration
doctor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}
