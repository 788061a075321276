package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/apiflow/internal/config"
	"github.com/ShayCichocki/apiflow/internal/state"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs",
	Long: `Show past runs recorded in the history database.

Without arguments, lists recent runs. With a run id, shows the run's
summary and per-task outcomes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			return showRun(db, args[0])
		}
		return listRuns(db)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
}

// openHistory opens the configured history database.
func openHistory() (*state.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.History.DBPath
	if dbPath == "" {
		workDir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		dbPath = state.ProjectDBPath(workDir)
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return db, nil
}

// listRuns prints recent runs newest first.
func listRuns(db *state.DB) error {
	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		statusColor := color.New(color.FgGreen)
		switch run.Status {
		case state.RunFailed:
			statusColor = color.New(color.FgRed)
		case state.RunStopped, state.RunActive:
			statusColor = color.New(color.FgYellow)
		}

		fmt.Printf("%s  %s  %s  %d/%d tasks\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.ID[:8],
			statusColor.Sprint(run.Status),
			run.CompletedCount, run.TaskCount)
		fmt.Printf("    %s\n", run.Query)
	}
	return nil
}

// showRun prints one run's summary and task outcomes. Short id
// prefixes are matched against the stored runs.
func showRun(db *state.DB, id string) error {
	run, err := resolveRun(db, id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s)\n", run.ID, run.Status)
	fmt.Printf("Query: %s\n", run.Query)
	fmt.Printf("Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Printf("Finished: %s\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	}

	tasks, err := db.ListRunTasks(run.ID)
	if err != nil {
		return err
	}
	if len(tasks) > 0 {
		fmt.Println("\nTasks:")
		for _, t := range tasks {
			marker := color.GreenString("✓")
			if t.Status != "completed" {
				marker = color.RedString("✗")
			}
			fmt.Printf("  %s Task %d: %s\n", marker, t.TaskID, t.Description)
			if t.Method != "" {
				fmt.Printf("      %s %s\n", t.Method, t.URL)
			}
			if t.ErrorDetail != "" {
				fmt.Printf("      %s\n", t.ErrorDetail)
			}
		}
	}

	if run.Summary != "" {
		fmt.Printf("\nSummary:\n%s\n", run.Summary)
	}
	return nil
}

// resolveRun finds a run by full id or unique prefix.
func resolveRun(db *state.DB, id string) (*state.Run, error) {
	run, err := db.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		return nil, err
	}
	var match *state.Run
	for i := range runs {
		if len(id) > 0 && len(runs[i].ID) >= len(id) && runs[i].ID[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no run found with id %q", id)
	}
	return match, nil
}
