package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategiesFile string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "algo",
	Short: "Scheduled equity trading strategies",
	Long: `Trading algo CLI

Runs one trading strategy on a market-hours schedule against a paper broker,
and plans allocator cycles offline.

Usage:
  go run ./cmd/algo [command]

Examples:
  go run ./cmd/algo run --strategy dividend --data ./data
  go run ./cmd/algo plan --holdings holdings.yaml --prices prices.csv
  go run ./cmd/algo schedule --strategy meanrev`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategiesFile, "strategies", "config/strategies.yaml", "strategy parameter file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
