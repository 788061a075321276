package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apiflow",
	Short: "Natural language to API call orchestration",
	Long: `Apiflow turns a natural language request into a sequence of real
API calls against your OpenAPI specifications.

It decomposes the request into tasks, picks the right specification
for each, resolves the concrete endpoint and parameters, executes the
call, and summarizes the combined results.

Typical usage:
  apiflow run "list all products and create an order for the cheapest one"

Specifications are YAML or JSON OpenAPI documents loaded from the
directory given by --specs (default: specs/).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(specsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
}
