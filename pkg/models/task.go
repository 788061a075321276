package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusSpecSelected indicates a specification has been chosen for the task.
	TaskStatusSpecSelected TaskStatus = "spec_selected"
	// TaskStatusCallPrepared indicates a concrete API call has been resolved.
	TaskStatusCallPrepared TaskStatus = "call_prepared"
	// TaskStatusCompleted indicates the task's API call succeeded.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusError indicates the task failed at some stage.
	TaskStatusError TaskStatus = "error"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusSpecSelected, TaskStatusCallPrepared,
		TaskStatusCompleted, TaskStatusError:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status never changes again.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusError
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition. The forward chain is
// pending -> spec_selected -> call_prepared -> completed, and any
// non-terminal state may move to error.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == TaskStatusError {
		return true
	}
	switch s {
	case TaskStatusPending:
		return next == TaskStatusSpecSelected
	case TaskStatusSpecSelected:
		return next == TaskStatusCallPrepared
	case TaskStatusCallPrepared:
		return next == TaskStatusCompleted
	default:
		return false
	}
}

// StageAttempts tracks retry attempts per processing stage.
type StageAttempts struct {
	// Select is the number of spec-selection attempts made.
	Select int `json:"select,omitempty"`
	// Resolve is the number of call-resolution attempts made.
	Resolve int `json:"resolve,omitempty"`
	// Execute is the number of execution attempts made.
	Execute int `json:"execute,omitempty"`
}

// Task represents one decomposed unit of work with its own lifecycle
// through spec selection, call resolution, and execution.
type Task struct {
	// ID is the unique identifier, assigned in decomposition order.
	ID int `json:"id"`
	// Description is the natural-language description of the step.
	Description string `json:"description"`
	// Status is the current lifecycle state of the task.
	Status TaskStatus `json:"status"`
	// SelectedSpecID is the chosen specification id, set once.
	SelectedSpecID string `json:"selected_spec_id,omitempty"`
	// Call is the resolved, ready-to-execute API call, set once.
	Call *CallDescriptor `json:"call,omitempty"`
	// Result contains the response payload, present iff completed.
	Result any `json:"result,omitempty"`
	// ErrorDetail contains the failure reason, present iff error.
	ErrorDetail string `json:"error_detail,omitempty"`
	// Attempts tracks retry bookkeeping per stage.
	Attempts StageAttempts `json:"attempts,omitempty"`
	// CreatedAt is when the task was produced by decomposition.
	CreatedAt time.Time `json:"created_at"`
	// FinishedAt is when the task reached a terminal state, if it has.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
