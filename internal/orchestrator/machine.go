package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/apiflow/internal/ports"
	"github.com/ShayCichocki/apiflow/internal/retry"
	"github.com/ShayCichocki/apiflow/internal/store"
	"github.com/ShayCichocki/apiflow/pkg/models"
)

// processTask drives one task from pending to a terminal state:
// pending -> spec_selected -> call_prepared -> completed, with error
// as the only alternate exit. Each stage's port call is retry-wrapped;
// exhaustion and explicit negative decisions both end the task, and
// the loop moves on to the next one.
func (o *Orchestrator) processTask(ctx context.Context, st *store.Store, task *models.Task) {
	o.emitter.Emit(Event{Type: EventTaskStarted, TaskID: task.ID, Description: task.Description})
	o.logger.Log("task %d started: %s", task.ID, task.Description)

	if !o.selectSpec(ctx, st, task) {
		return
	}
	if !o.resolveCall(ctx, st, task) {
		return
	}
	o.execute(ctx, st, task)
}

// selectSpec runs the selection stage. A "none" decision or an id that
// is not in the loaded set fails the task immediately; re-asking the
// model about output it already produced would just repeat the invalid
// choice.
func (o *Orchestrator) selectSpec(ctx context.Context, st *store.Store, task *models.Task) bool {
	decision, err := retry.Do(ctx, o.decisionRetry, func() (ports.SelectionDecision, error) {
		task.Attempts.Select++
		return o.cfg.Selector.SelectSpec(ctx, task.Description, st.SpecSummaries())
	})
	if err != nil {
		o.fail(st, task, fmt.Sprintf("spec selection failed: %v", err))
		return false
	}

	switch decision.Kind {
	case ports.SelectionNone:
		reason := decision.Reason
		if reason == "" {
			reason = "no specification fits this task"
		}
		o.fail(st, task, "no spec selected: "+reason)
		return false
	case ports.SelectionSelected:
		if !st.HasSpec(decision.SpecID) {
			o.fail(st, task, fmt.Sprintf("selected spec %q is not among the loaded specifications", decision.SpecID))
			return false
		}
		if err := st.MarkSpecSelected(task.ID, decision.SpecID); err != nil {
			o.fail(st, task, err.Error())
			return false
		}
		o.emitter.Emit(Event{
			Type:        EventSpecSelected,
			TaskID:      task.ID,
			Description: task.Description,
			Message:     decision.SpecID,
		})
		o.logger.Log("task %d selected spec %s", task.ID, decision.SpecID)
		return true
	default:
		o.fail(st, task, fmt.Sprintf("unknown selection decision %d", decision.Kind))
		return false
	}
}

// resolveCall runs the resolution stage against the task's selected
// spec, passing the results of strictly earlier tasks as context.
func (o *Orchestrator) resolveCall(ctx context.Context, st *store.Store, task *models.Task) bool {
	entry := st.Spec(task.SelectedSpecID)

	decision, err := retry.Do(ctx, o.decisionRetry, func() (ports.ResolutionDecision, error) {
		task.Attempts.Resolve++
		return o.cfg.Resolver.ResolveCall(ctx, task.Description, entry, st.Results())
	})
	if err != nil {
		o.fail(st, task, fmt.Sprintf("call resolution failed: %v", err))
		return false
	}

	switch decision.Kind {
	case ports.ResolutionNotFound:
		reason := decision.Reason
		if reason == "" {
			reason = "no suitable endpoint found"
		}
		o.fail(st, task, "call not resolved: "+reason)
		return false
	case ports.ResolutionResolved:
		if decision.Call == nil {
			o.fail(st, task, "resolver returned an empty call descriptor")
			return false
		}
		if err := st.MarkCallPrepared(task.ID, decision.Call); err != nil {
			o.fail(st, task, err.Error())
			return false
		}
		o.emitter.Emit(Event{
			Type:        EventCallPrepared,
			TaskID:      task.ID,
			Description: task.Description,
			Message:     fmt.Sprintf("%s %s", decision.Call.Method, decision.Call.URL),
		})
		o.logger.Log("task %d prepared call %s %s", task.ID, decision.Call.Method, decision.Call.URL)
		return true
	default:
		o.fail(st, task, fmt.Sprintf("unknown resolution decision %d", decision.Kind))
		return false
	}
}

// execute runs the final stage. Unsuccessful outcomes are retried like
// transport errors; after exhaustion the last failure becomes the
// task's error detail.
func (o *Orchestrator) execute(ctx context.Context, st *store.Store, task *models.Task) {
	outcome, err := retry.Do(ctx, o.executeRetry, func() (models.Outcome, error) {
		task.Attempts.Execute++
		out, execErr := o.cfg.Executor.Execute(ctx, task.Call)
		if execErr != nil {
			return models.Outcome{}, execErr
		}
		if !out.Success() {
			return models.Outcome{}, executionError(out)
		}
		return out, nil
	})
	if err != nil {
		o.fail(st, task, err.Error())
		return
	}

	if err := st.MarkCompleted(task.ID, outcome.Body); err != nil {
		o.fail(st, task, err.Error())
		return
	}
	o.emitter.Emit(Event{
		Type:        EventTaskCompleted,
		TaskID:      task.ID,
		Description: task.Description,
		Message:     fmt.Sprintf("status %d", outcome.StatusCode),
	})
	o.logger.Log("task %d completed with status %d", task.ID, outcome.StatusCode)
}

// executionError renders a failed outcome as the error carried through
// the retry wrapper, keeping a response snippet for the task's detail.
func executionError(out models.Outcome) error {
	detail := out.Error
	if detail == "" {
		detail = "unknown API execution error"
	}
	if out.Body != nil {
		body := fmt.Sprintf("%v", out.Body)
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		return fmt.Errorf("API call failed (status %d): %s; response body: %s", out.StatusCode, detail, body)
	}
	return fmt.Errorf("API call failed (status %d): %s", out.StatusCode, detail)
}

// fail moves a task to the terminal error state and reports it. The
// run itself continues with the next pending task.
func (o *Orchestrator) fail(st *store.Store, task *models.Task, detail string) {
	if err := st.MarkError(task.ID, detail); err != nil {
		o.logger.Log("task %d: mark error: %v", task.ID, err)
		return
	}
	o.emitter.Emit(Event{
		Type:        EventTaskFailed,
		TaskID:      task.ID,
		Description: task.Description,
		Err:         detail,
	})
	o.logger.Log("task %d failed: %s", task.ID, detail)
}
