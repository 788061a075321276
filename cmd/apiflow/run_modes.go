package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/ShayCichocki/apiflow/internal/orchestrator"
)

// runHeadlessMode runs the orchestrator and prints events to stdout.
func runHeadlessMode(ctx context.Context, orch *orchestrator.Orchestrator, query string, specSource []string) (*orchestrator.Result, error) {
	done := make(chan struct{})
	go func() {
		consumeEventsHeadless(orch.Events())
		close(done)
	}()

	fmt.Printf("Processing request: %s\n\n", query)

	result, err := orch.Run(ctx, query, specSource)
	<-done
	if err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}

	fmt.Println()
	printSummary(result)
	return result, nil
}

// consumeEventsHeadless prints orchestrator events to stdout.
func consumeEventsHeadless(events <-chan orchestrator.Event) {
	for event := range events {
		switch event.Type {
		case orchestrator.EventSpecsLoaded:
			fmt.Printf("[SPECS] %s\n", event.Message)
		case orchestrator.EventTasksDecomposed:
			fmt.Printf("[PLAN] %s\n", event.Message)
		case orchestrator.EventTaskStarted:
			fmt.Printf("[TASK %d] %s\n", event.TaskID, event.Description)
		case orchestrator.EventSpecSelected:
			fmt.Printf("[TASK %d] spec: %s\n", event.TaskID, event.Message)
		case orchestrator.EventCallPrepared:
			fmt.Printf("[TASK %d] call: %s\n", event.TaskID, event.Message)
		case orchestrator.EventTaskCompleted:
			color.Green("[TASK %d] done (%s)", event.TaskID, event.Message)
		case orchestrator.EventTaskFailed:
			color.Red("[TASK %d] failed: %s", event.TaskID, event.Err)
		case orchestrator.EventRunStopping:
			color.Yellow("[STOP] %s", event.Message)
		case orchestrator.EventRunFinished:
			fmt.Printf("[DONE] %s\n", event.Message)
		}
	}
}

// printSummary renders the final answer and per-task outcomes.
func printSummary(result *orchestrator.Result) {
	bold := color.New(color.Bold)
	bold.Println("Summary")
	fmt.Println(result.Summary)

	if result.Failed > 0 {
		fmt.Println()
		color.Yellow("%d of %d tasks failed:", result.Failed, len(result.Tasks))
		for _, task := range result.Tasks {
			if task.ErrorDetail != "" {
				fmt.Printf("  - Task %d (%s): %s\n", task.ID, task.Description, task.ErrorDetail)
			}
		}
	}
}
