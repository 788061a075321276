// Package orchestrator drives a run: it decomposes the query into
// tasks, walks each task through spec selection, call resolution, and
// execution in strict decomposition order, and produces the final
// summary.
package orchestrator

import (
	"log"
	"sync/atomic"
	"time"
)

// EventType classifies orchestrator events.
type EventType string

const (
	// EventRunStarted is emitted once before spec loading.
	EventRunStarted EventType = "run_started"
	// EventSpecsLoaded is emitted after the spec set is loaded.
	EventSpecsLoaded EventType = "specs_loaded"
	// EventTasksDecomposed is emitted after decomposition populates the task list.
	EventTasksDecomposed EventType = "tasks_decomposed"
	// EventTaskStarted is emitted when a pending task begins processing.
	EventTaskStarted EventType = "task_started"
	// EventSpecSelected is emitted when a task's spec id is validated.
	EventSpecSelected EventType = "spec_selected"
	// EventCallPrepared is emitted when a task's call is resolved.
	EventCallPrepared EventType = "call_prepared"
	// EventTaskCompleted is emitted when a task's call succeeds.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed is emitted when a task reaches the error state.
	EventTaskFailed EventType = "task_failed"
	// EventRunStopping is emitted when a stop request is honored.
	EventRunStopping EventType = "run_stopping"
	// EventRunFinished is emitted once, after the summary is stored.
	EventRunFinished EventType = "run_finished"
)

// Event reports progress of a run to subscribers such as the TUI or
// the headless printer.
type Event struct {
	// Type classifies the event.
	Type EventType
	// TaskID is the affected task, or 0 for run-level events.
	TaskID int
	// Description is the affected task's description, if any.
	Description string
	// Message carries human-readable detail.
	Message string
	// Err carries the failure detail for task_failed events.
	Err string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emitter fans orchestrator events out to a subscriber over a
// buffered channel. Events are dropped rather than blocking the run.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEmitter creates an Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Emitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event, waiting briefly for a slow subscriber before
// dropping it.
func (e *Emitter) Emit(event Event) {
	event.Timestamp = time.Now()

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[orchestrator] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the subscriber side of the channel.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Called once, after the run ends.
func (e *Emitter) Close() {
	close(e.events)
}
