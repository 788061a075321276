package main

import (
	"context"
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/apiflow/internal/orchestrator"
	"github.com/ShayCichocki/apiflow/internal/tui"
)

// runWithTUI runs the orchestrator behind the live task board.
func runWithTUI(ctx context.Context, orch *orchestrator.Orchestrator, query string, specSource []string) (result *orchestrator.Result, retErr error) {
	// Suppress log output while TUI is active (it corrupts the display)
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runWithTUI: %v", r)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program, _ := tui.NewProgram(query)

	go forwardEventsToTUI(program, orch.Events())

	type runOutcome struct {
		result *orchestrator.Result
		err    error
	}
	orchDone := make(chan runOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				orchDone <- runOutcome{err: fmt.Errorf("PANIC in orchestrator: %v", r)}
			}
		}()
		res, err := orch.Run(ctx, query, specSource)
		orchDone <- runOutcome{result: res, err: err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				tuiDone <- fmt.Errorf("PANIC in TUI: %v", r)
			}
		}()
		_, err := program.Run()
		tuiDone <- err
	}()

	select {
	case outcome := <-orchDone:
		if outcome.err != nil {
			program.Send(tui.RunDoneMsg{Success: false, Message: outcome.err.Error()})
		} else {
			program.Send(tui.RunDoneMsg{
				Success: true,
				Summary: outcome.result.Summary,
				Message: fmt.Sprintf("%d completed, %d failed", outcome.result.Completed, outcome.result.Failed),
			})
		}
		// Wait for the user to quit (press q) so they can read the summary.
		<-tuiDone
		return outcome.result, outcome.err

	case err := <-tuiDone:
		// User quit before the run ended; cancel and drain the orchestrator.
		cancel()
		outcome := <-orchDone
		if err != nil {
			return outcome.result, err
		}
		return outcome.result, outcome.err
	}
}

// forwardEventsToTUI converts orchestrator events to TUI messages.
func forwardEventsToTUI(program *tea.Program, events <-chan orchestrator.Event) {
	for event := range events {
		program.Send(tui.RunEventMsg{
			Type:        string(event.Type),
			TaskID:      event.TaskID,
			Description: event.Description,
			Message:     event.Message,
			Err:         event.Err,
			Timestamp:   event.Timestamp,
		})
	}
}
