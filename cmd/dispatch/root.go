package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Task orchestration engine",
	Long: `Dispatch coordinates tasks across a pool of workers.

Tasks carry priorities, capability requirements, and dependency
edges. Dispatch tracks each task through its lifecycle, unblocks
dependents as their prerequisites complete, and hands ready work
to the best-matching idle worker.

Drop task YAML files into the spool directory to submit work:

  id: schema-1
  title: Build schema
  priority: high
  required_capabilities: [sql]
  depends_on: [bootstrap]`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
