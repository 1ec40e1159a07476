package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dashboardFile string
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "findash",
	Short: "findash - market dashboard data pipeline",
	Long: `findash Unified CLI

Fetches daily closes, normalizes them into a date-indexed table and
derives growth, returns, alerts, key figures and correlations.

Usage:
  go run ./cmd/findash [command]

Examples:
  go run ./cmd/findash api
  go run ./cmd/findash snapshot --category fx
  go run ./cmd/findash export --out dashboard.xlsx
  go run ./cmd/findash config validate dashboard.yaml
  go run ./cmd/findash scheduler run cache_warm`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dashboardFile, "dashboard", "", "dashboard YAML (default is $DASHBOARD_CONFIG or the embedded default)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
