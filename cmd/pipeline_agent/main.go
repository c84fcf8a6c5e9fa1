// Package main provides the pipeline_agent CLI: the HTTP API server and the
// operator commands around it.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logDebug   bool
	logJSON    bool
	pretty     bool
)

var rootCmd = &cobra.Command{
	Use:           "pipeline_agent",
	Short:         "Talent pipeline back office",
	Long:          "pipeline_agent serves the talent pipeline API (candidatures, shortlists, entretiens, contrats, factures) and runs its maintenance jobs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&logDebug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&logJSON, "json", "j", false, "Log as JSON")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Print command results as formatted boxes instead of JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
