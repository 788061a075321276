// Package store holds the mutable per-run state shared across the
// orchestration stages. The orchestrator is the single writer; no
// other component keeps a reference beyond a port invocation.
package store

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/apiflow/pkg/models"
)

// Store is the state container for a single run. It is created once
// per run, populated by decomposition, mutated task-by-task, and
// discarded after the final summary is produced.
type Store struct {
	query       string
	specs       map[string]*models.SpecEntry
	tasks       []*models.Task
	results     map[int]any
	currentID   int
	summary     string
	summarySet  bool
}

// New creates an empty store for the given query. The query is
// immutable afterward.
func New(query string) *Store {
	return &Store{
		query:   query,
		results: make(map[int]any),
	}
}

// Query returns the original natural-language request.
func (s *Store) Query() string {
	return s.query
}

// SetSpecs records the loaded specifications. It may be called once.
func (s *Store) SetSpecs(specs map[string]*models.SpecEntry) error {
	if s.specs != nil {
		return fmt.Errorf("specs already set")
	}
	s.specs = specs
	return nil
}

// Specs returns the loaded specifications.
func (s *Store) Specs() map[string]*models.SpecEntry {
	return s.specs
}

// Spec returns the spec with the given id, or nil if absent.
func (s *Store) Spec(id string) *models.SpecEntry {
	return s.specs[id]
}

// HasSpec reports whether a spec with the given id was loaded.
func (s *Store) HasSpec(id string) bool {
	_, ok := s.specs[id]
	return ok
}

// SpecSummaries returns the id -> summary mapping used for selection.
func (s *Store) SpecSummaries() map[string]string {
	summaries := make(map[string]string, len(s.specs))
	for id, entry := range s.specs {
		summaries[id] = entry.Summary
	}
	return summaries
}

// AddTasks appends pending tasks built from the decomposed
// descriptions, assigning ids in decomposition order starting at 1.
func (s *Store) AddTasks(descriptions []string) {
	now := time.Now()
	for _, desc := range descriptions {
		s.tasks = append(s.tasks, &models.Task{
			ID:          len(s.tasks) + 1,
			Description: desc,
			Status:      models.TaskStatusPending,
			CreatedAt:   now,
		})
	}
}

// Tasks returns the ordered task list.
func (s *Store) Tasks() []*models.Task {
	return s.tasks
}

// Task returns the task with the given id, or nil.
func (s *Store) Task(id int) *models.Task {
	if id < 1 || id > len(s.tasks) {
		return nil
	}
	return s.tasks[id-1]
}

// NextPending returns the lowest-id task with status pending, or nil
// when none remains.
func (s *Store) NextPending() *models.Task {
	for _, task := range s.tasks {
		if task.Status == models.TaskStatusPending {
			s.currentID = task.ID
			return task
		}
	}
	s.currentID = 0
	return nil
}

// CurrentTaskID returns the id of the task under processing, or 0.
func (s *Store) CurrentTaskID() int {
	return s.currentID
}

// transition moves a task to the next status after checking the
// lifecycle rules. Terminal tasks are frozen.
func (s *Store) transition(task *models.Task, next models.TaskStatus) error {
	if task.Status.Terminal() {
		return fmt.Errorf("task %d is %s and frozen", task.ID, task.Status)
	}
	if !task.Status.CanTransition(next) {
		return fmt.Errorf("task %d: illegal transition %s -> %s", task.ID, task.Status, next)
	}
	task.Status = next
	if next.Terminal() {
		now := time.Now()
		task.FinishedAt = &now
	}
	return nil
}

// MarkSpecSelected records the validated spec id on the task and
// advances it to spec_selected.
func (s *Store) MarkSpecSelected(id int, specID string) error {
	task := s.Task(id)
	if task == nil {
		return fmt.Errorf("task %d not found", id)
	}
	if err := s.transition(task, models.TaskStatusSpecSelected); err != nil {
		return err
	}
	task.SelectedSpecID = specID
	return nil
}

// MarkCallPrepared records the resolved call on the task and advances
// it to call_prepared.
func (s *Store) MarkCallPrepared(id int, call *models.CallDescriptor) error {
	task := s.Task(id)
	if task == nil {
		return fmt.Errorf("task %d not found", id)
	}
	if err := s.transition(task, models.TaskStatusCallPrepared); err != nil {
		return err
	}
	task.Call = call
	return nil
}

// MarkCompleted records the execution result on the task, advances it
// to completed, and registers the result for later tasks to consume.
func (s *Store) MarkCompleted(id int, result any) error {
	task := s.Task(id)
	if task == nil {
		return fmt.Errorf("task %d not found", id)
	}
	if err := s.transition(task, models.TaskStatusCompleted); err != nil {
		return err
	}
	task.Result = result
	s.results[id] = result
	return nil
}

// MarkError records the failure detail on the task and moves it to the
// terminal error state. Error tasks contribute no result entry.
func (s *Store) MarkError(id int, detail string) error {
	task := s.Task(id)
	if task == nil {
		return fmt.Errorf("task %d not found", id)
	}
	if detail == "" {
		detail = "unknown error"
	}
	if err := s.transition(task, models.TaskStatusError); err != nil {
		return err
	}
	task.ErrorDetail = detail
	return nil
}

// Results returns a copy of the task id -> result mapping. Entries
// appear only as tasks complete and are never removed or altered.
func (s *Store) Results() map[int]any {
	out := make(map[int]any, len(s.results))
	for id, result := range s.results {
		out[id] = result
	}
	return out
}

// SetSummary records the final summary. It may be called once.
func (s *Store) SetSummary(summary string) error {
	if s.summarySet {
		return fmt.Errorf("summary already set")
	}
	s.summary = summary
	s.summarySet = true
	return nil
}

// Summary returns the final summary and whether it has been set.
func (s *Store) Summary() (string, bool) {
	return s.summary, s.summarySet
}
