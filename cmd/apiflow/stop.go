package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/apiflow/internal/signals"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the run in progress",
	Long: `Request a graceful stop of the apiflow run in this directory.

The task currently in flight finishes; remaining tasks are skipped and
the run still produces a summary of what completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		if err := signals.RequestStop(workDir); err != nil {
			return fmt.Errorf("request stop: %w", err)
		}
		fmt.Println("Stop requested. The current task will finish first.")
		return nil
	},
}
