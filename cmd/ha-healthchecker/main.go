package main

import (
	"fmt"
	"os"

	"github.com/openlab-infra/ha-healthchecker/pkg/log"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ha-healthchecker",
	Short: "Health checker and failover controller for a two-site Zuul/Nodepool control plane",
	Long: `ha-healthchecker watches the nodes and services of a two-site CI
control plane, restarts what it can, alerts on what it can't, and
promotes the standby site when the active one stops answering.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("ha-healthchecker version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(seedCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
