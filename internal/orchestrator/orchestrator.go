package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/apiflow/internal/ports"
	"github.com/ShayCichocki/apiflow/internal/retry"
	"github.com/ShayCichocki/apiflow/internal/store"
	"github.com/ShayCichocki/apiflow/pkg/models"
)

// SpecLoader loads the immutable spec set for a run. It returns the
// loaded entries, human-readable warnings for skipped files, and an
// error when nothing could be loaded.
type SpecLoader func(source []string) (map[string]*models.SpecEntry, []string, error)

// Config assembles an Orchestrator's collaborators and policies.
type Config struct {
	// SpecLoader loads specifications from the run's source.
	SpecLoader SpecLoader
	// Decomposer breaks the query into task descriptions.
	Decomposer ports.Decomposer
	// Selector picks a spec for each task.
	Selector ports.SpecSelector
	// Resolver prepares a call from the selected spec.
	Resolver ports.CallResolver
	// Executor performs prepared calls.
	Executor ports.Executor
	// Summarizer produces the final answer.
	Summarizer ports.Summarizer
	// DecisionRetry wraps decomposition, selection, resolution, and
	// summarization. Zero-value falls back to retry.DefaultPolicy.
	DecisionRetry retry.Policy
	// ExecuteRetry wraps call execution.
	ExecuteRetry retry.Policy
	// ShouldStop is polled between tasks; true makes the run skip the
	// remaining pending tasks and go straight to summarization. May be
	// nil.
	ShouldStop func() bool
	// Logger receives debug output. May be nil.
	Logger *DebugLogger
	// EventBuffer sizes the event channel.
	EventBuffer int
}

// Result is the outcome of a completed run.
type Result struct {
	// Summary is the final natural-language answer.
	Summary string
	// Tasks is the terminal task list, in decomposition order.
	Tasks []models.Task
	// Completed and Failed count terminal task states.
	Completed int
	Failed    int
	// Stopped reports whether the run honored an external stop request.
	Stopped bool
	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Orchestrator owns the shared store for one run at a time and is the
// only caller of the decision and executor ports. Tasks are processed
// strictly one at a time, in decomposition order, because later tasks
// read results produced by earlier ones.
type Orchestrator struct {
	cfg           Config
	decisionRetry retry.Policy
	executeRetry  retry.Policy
	emitter       *Emitter
	logger        *DebugLogger
}

// New validates the configuration and creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.SpecLoader == nil {
		return nil, fmt.Errorf("orchestrator: SpecLoader is required")
	}
	if cfg.Decomposer == nil || cfg.Selector == nil || cfg.Resolver == nil ||
		cfg.Executor == nil || cfg.Summarizer == nil {
		return nil, fmt.Errorf("orchestrator: all ports are required")
	}

	decisionRetry := cfg.DecisionRetry
	if decisionRetry.MaxAttempts == 0 {
		decisionRetry = retry.DefaultPolicy()
	}
	executeRetry := cfg.ExecuteRetry
	if executeRetry.MaxAttempts == 0 {
		executeRetry = retry.DefaultPolicy()
	}

	return &Orchestrator{
		cfg:           cfg,
		decisionRetry: decisionRetry,
		executeRetry:  executeRetry,
		emitter:       NewEmitter(cfg.EventBuffer),
		logger:        cfg.Logger,
	}, nil
}

// Events returns the channel of run progress events.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Run executes the full pipeline for one query and spec source and
// returns the result. Fatal errors (no specs, no tasks) abort before
// any summary is produced; individual task failures never do.
func (o *Orchestrator) Run(ctx context.Context, query string, specSource []string) (*Result, error) {
	start := time.Now()
	defer o.emitter.Close()

	o.emitter.Emit(Event{Type: EventRunStarted, Message: query})
	o.logger.Log("run started: %q source=%v", query, specSource)

	specs, warnings, err := o.cfg.SpecLoader(specSource)
	if err != nil {
		return nil, fmt.Errorf("load specs: %w", err)
	}
	for _, warning := range warnings {
		o.logger.Log("spec loader: %s", warning)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("load specs: no specifications loaded")
	}
	o.emitter.Emit(Event{
		Type:    EventSpecsLoaded,
		Message: fmt.Sprintf("%d specifications loaded", len(specs)),
	})

	st := store.New(query)
	if err := st.SetSpecs(specs); err != nil {
		return nil, err
	}

	descriptions, err := retry.Do(ctx, o.decisionRetry, func() ([]string, error) {
		return o.cfg.Decomposer.Decompose(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("decompose query: %w", err)
	}
	if len(descriptions) == 0 {
		return nil, fmt.Errorf("decompose query: produced no tasks")
	}

	st.AddTasks(descriptions)
	o.logger.Log("decomposed into %d tasks", len(descriptions))
	o.emitter.Emit(Event{
		Type:    EventTasksDecomposed,
		Message: fmt.Sprintf("%d tasks", len(descriptions)),
	})

	stopped := false
	for {
		if o.cfg.ShouldStop != nil && o.cfg.ShouldStop() {
			stopped = true
			o.emitter.Emit(Event{Type: EventRunStopping, Message: "stop requested"})
			o.logger.Log("stop requested, skipping remaining pending tasks")
			o.failRemaining(st, "run stopped before task started")
			break
		}

		task := st.NextPending()
		if task == nil {
			break
		}
		o.processTask(ctx, st, task)
	}

	summary := o.summarize(ctx, st)
	if err := st.SetSummary(summary); err != nil {
		return nil, err
	}

	result := o.buildResult(st, summary, stopped, time.Since(start))
	o.emitter.Emit(Event{
		Type:    EventRunFinished,
		Message: fmt.Sprintf("%d completed, %d failed", result.Completed, result.Failed),
	})
	o.logger.Log("run finished: %d completed, %d failed, duration=%s",
		result.Completed, result.Failed, result.Duration)
	return result, nil
}

// summarize builds the summarization input from the completed tasks
// and invokes the Summarizer. Exhausted retries fall back to a plain
// rendering of the results so the run still yields a summary.
func (o *Orchestrator) summarize(ctx context.Context, st *store.Store) string {
	completed := make(map[int]ports.CompletedTask)
	for id, result := range st.Results() {
		task := st.Task(id)
		completed[id] = ports.CompletedTask{
			Description: task.Description,
			Result:      result,
		}
	}

	summary, err := retry.Do(ctx, o.decisionRetry, func() (string, error) {
		return o.cfg.Summarizer.Summarize(ctx, st.Query(), completed)
	})
	if err != nil {
		o.logger.Log("summarizer failed after retries: %v", err)
		return fallbackSummary(st, completed)
	}
	return summary
}

// fallbackSummary is used when the Summarizer port is exhausted: the
// caller still gets an account of what happened.
func fallbackSummary(st *store.Store, completed map[int]ports.CompletedTask) string {
	if len(completed) == 0 {
		return fmt.Sprintf("No tasks completed successfully for request: %s", st.Query())
	}
	out := fmt.Sprintf("Summary generation failed; raw results for request %q:\n", st.Query())
	for _, task := range st.Tasks() {
		if entry, ok := completed[task.ID]; ok {
			out += fmt.Sprintf("- Task %d (%s): %v\n", task.ID, entry.Description, entry.Result)
		}
	}
	return out
}

// failRemaining marks every still-pending task as error when a run is
// stopped early.
func (o *Orchestrator) failRemaining(st *store.Store, detail string) {
	for _, task := range st.Tasks() {
		if task.Status == models.TaskStatusPending {
			o.fail(st, task, detail)
		}
	}
}

func (o *Orchestrator) buildResult(st *store.Store, summary string, stopped bool, duration time.Duration) *Result {
	result := &Result{
		Summary:  summary,
		Stopped:  stopped,
		Duration: duration,
	}
	for _, task := range st.Tasks() {
		result.Tasks = append(result.Tasks, *task)
		switch task.Status {
		case models.TaskStatusCompleted:
			result.Completed++
		case models.TaskStatusError:
			result.Failed++
		}
	}
	return result
}
