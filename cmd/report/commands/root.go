package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env        string
	policyFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "report",
	Short: "UK COVID-19 report generator",
	Long: `UK COVID-19 report generator

Fetches the public UK COVID-19 datasets, corrects, aggregates, smooths,
normalises and scores them, and writes a set of static HTML pages.
Every run starts from scratch; nothing is stored between runs.

Usage:
  go run ./cmd/report [command]

Examples:
  go run ./cmd/report generate
  go run ./cmd/report generate --page index --page map
  go run ./cmd/report schedule
  go run ./cmd/report sources check
  go run ./cmd/report policy validate config/policy.yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production), overrides ENV")
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "policy YAML file, overrides POLICY_FILE")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
