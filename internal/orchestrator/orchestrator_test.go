package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ShayCichocki/apiflow/internal/ports"
	"github.com/ShayCichocki/apiflow/internal/retry"
	"github.com/ShayCichocki/apiflow/pkg/models"
)

type stubDecomposer struct {
	tasks []string
	err   error
}

func (s *stubDecomposer) Decompose(_ context.Context, _ string) ([]string, error) {
	return s.tasks, s.err
}

type stubSelector struct {
	fn func(desc string) (ports.SelectionDecision, error)
}

func (s *stubSelector) SelectSpec(_ context.Context, desc string, _ map[string]string) (ports.SelectionDecision, error) {
	return s.fn(desc)
}

type stubResolver struct {
	fn func(desc string, spec *models.SpecEntry, prior map[int]any) (ports.ResolutionDecision, error)
}

func (s *stubResolver) ResolveCall(_ context.Context, desc string, spec *models.SpecEntry, prior map[int]any) (ports.ResolutionDecision, error) {
	return s.fn(desc, spec, prior)
}

type stubExecutor struct {
	fn func(call *models.CallDescriptor) (models.Outcome, error)
}

func (s *stubExecutor) Execute(_ context.Context, call *models.CallDescriptor) (models.Outcome, error) {
	return s.fn(call)
}

type stubSummarizer struct {
	fn func(query string, results map[int]ports.CompletedTask) (string, error)
}

func (s *stubSummarizer) Summarize(_ context.Context, query string, results map[int]ports.CompletedTask) (string, error) {
	return s.fn(query, results)
}

func testSpecs() map[string]*models.SpecEntry {
	return map[string]*models.SpecEntry{
		"products.yaml": {ID: "products.yaml", Summary: "Spec: products.yaml - Title: Products API"},
		"orders.yaml":   {ID: "orders.yaml", Summary: "Spec: orders.yaml - Title: Orders API"},
	}
}

func testLoader(specs map[string]*models.SpecEntry) SpecLoader {
	return func(_ []string) (map[string]*models.SpecEntry, []string, error) {
		return specs, nil, nil
	}
}

// baseConfig wires a fully working pipeline; individual tests override
// the ports they exercise.
func baseConfig() Config {
	return Config{
		SpecLoader: testLoader(testSpecs()),
		Decomposer: &stubDecomposer{tasks: []string{"list products", "create order"}},
		Selector: &stubSelector{fn: func(desc string) (ports.SelectionDecision, error) {
			if strings.Contains(desc, "order") {
				return ports.Selected("orders.yaml"), nil
			}
			return ports.Selected("products.yaml"), nil
		}},
		Resolver: &stubResolver{fn: func(desc string, spec *models.SpecEntry, prior map[int]any) (ports.ResolutionDecision, error) {
			return ports.Resolved(&models.CallDescriptor{Method: "GET", URL: "http://api.test/" + spec.ID}), nil
		}},
		Executor: &stubExecutor{fn: func(call *models.CallDescriptor) (models.Outcome, error) {
			return models.Outcome{StatusCode: 200, Body: map[string]any{"url": call.URL}}, nil
		}},
		Summarizer: &stubSummarizer{fn: func(query string, results map[int]ports.CompletedTask) (string, error) {
			return fmt.Sprintf("summary for %q with %d results", query, len(results)), nil
		}},
		DecisionRetry: retry.Policy{MaxAttempts: 2},
		ExecuteRetry:  retry.Policy{MaxAttempts: 2},
	}
}

func mustRun(t *testing.T, cfg Config, query string) *Result {
	t.Helper()
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := o.Run(context.Background(), query, []string{"specs"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func TestRunHappyPath(t *testing.T) {
	result := mustRun(t, baseConfig(), "list products and create an order")

	if result.Completed != 2 || result.Failed != 0 {
		t.Fatalf("expected 2 completed, 0 failed, got %d/%d", result.Completed, result.Failed)
	}
	if result.Stopped {
		t.Error("run should not report stopped")
	}
	if !strings.Contains(result.Summary, "2 results") {
		t.Errorf("summary should reflect both results, got %q", result.Summary)
	}
	for _, task := range result.Tasks {
		if task.Status != models.TaskStatusCompleted {
			t.Errorf("task %d status = %s, want completed", task.ID, task.Status)
		}
		if task.FinishedAt == nil {
			t.Errorf("task %d has no finish time", task.ID)
		}
	}
}

func TestRunRepeatedRunsAreIdentical(t *testing.T) {
	makeConfig := func() Config {
		cfg := baseConfig()
		cfg.Executor = &stubExecutor{fn: func(call *models.CallDescriptor) (models.Outcome, error) {
			if strings.Contains(call.URL, "orders") {
				return models.Outcome{StatusCode: 500, Body: "oops"}, nil
			}
			return models.Outcome{StatusCode: 200, Body: map[string]any{"url": call.URL}}, nil
		}}
		return cfg
	}

	first := mustRun(t, makeConfig(), "list products and create an order")
	second := mustRun(t, makeConfig(), "list products and create an order")

	if first.Summary != second.Summary {
		t.Errorf("summaries differ: %q vs %q", first.Summary, second.Summary)
	}
	if first.Completed != second.Completed || first.Failed != second.Failed {
		t.Errorf("counts differ: %d/%d vs %d/%d",
			first.Completed, first.Failed, second.Completed, second.Failed)
	}
	if first.Stopped != second.Stopped {
		t.Errorf("stopped differs: %v vs %v", first.Stopped, second.Stopped)
	}
	if len(first.Tasks) != len(second.Tasks) {
		t.Fatalf("task counts differ: %d vs %d", len(first.Tasks), len(second.Tasks))
	}
	for i := range first.Tasks {
		a, b := first.Tasks[i], second.Tasks[i]
		if a.ID != b.ID || a.Description != b.Description || a.Status != b.Status {
			t.Errorf("task %d diverged: %+v vs %+v", a.ID, a, b)
		}
		if a.SelectedSpecID != b.SelectedSpecID || a.ErrorDetail != b.ErrorDetail {
			t.Errorf("task %d terminal detail diverged: %+v vs %+v", a.ID, a, b)
		}
		if fmt.Sprint(a.Result) != fmt.Sprint(b.Result) {
			t.Errorf("task %d results differ: %v vs %v", a.ID, a.Result, b.Result)
		}
	}
}

func TestRunLaterTaskSeesEarlierResults(t *testing.T) {
	cfg := baseConfig()
	var secondTaskPrior map[int]any
	cfg.Resolver = &stubResolver{fn: func(desc string, spec *models.SpecEntry, prior map[int]any) (ports.ResolutionDecision, error) {
		if strings.Contains(desc, "order") {
			secondTaskPrior = prior
		}
		return ports.Resolved(&models.CallDescriptor{Method: "GET", URL: "http://api.test/x"}), nil
	}}
	cfg.Executor = &stubExecutor{fn: func(_ *models.CallDescriptor) (models.Outcome, error) {
		return models.Outcome{StatusCode: 200, Body: "ok"}, nil
	}}

	mustRun(t, cfg, "two tasks")

	if len(secondTaskPrior) != 1 {
		t.Fatalf("second task should see exactly the first task's result, got %v", secondTaskPrior)
	}
	if secondTaskPrior[1] != "ok" {
		t.Errorf("prior result for task 1 = %v, want %q", secondTaskPrior[1], "ok")
	}
}

func TestRunSelectorDeclines(t *testing.T) {
	cfg := baseConfig()
	cfg.Selector = &stubSelector{fn: func(desc string) (ports.SelectionDecision, error) {
		if strings.Contains(desc, "order") {
			return ports.NoSelection("nothing covers ordering"), nil
		}
		return ports.Selected("products.yaml"), nil
	}}

	result := mustRun(t, cfg, "mixed outcomes")

	if result.Completed != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 completed, 1 failed, got %d/%d", result.Completed, result.Failed)
	}
	failed := result.Tasks[1]
	if failed.Status != models.TaskStatusError {
		t.Fatalf("second task status = %s, want error", failed.Status)
	}
	if !strings.Contains(failed.ErrorDetail, "nothing covers ordering") {
		t.Errorf("error detail should carry the decline reason, got %q", failed.ErrorDetail)
	}
}

func TestRunInvalidSpecID(t *testing.T) {
	cfg := baseConfig()
	cfg.Decomposer = &stubDecomposer{tasks: []string{"only task"}}
	cfg.Selector = &stubSelector{fn: func(string) (ports.SelectionDecision, error) {
		return ports.Selected("made-up.yaml"), nil
	}}
	resolverCalled := false
	cfg.Resolver = &stubResolver{fn: func(string, *models.SpecEntry, map[int]any) (ports.ResolutionDecision, error) {
		resolverCalled = true
		return ports.NotFound("should not get here"), nil
	}}

	result := mustRun(t, cfg, "bad selection")

	if result.Failed != 1 {
		t.Fatalf("expected the task to fail, got %d failed", result.Failed)
	}
	if resolverCalled {
		t.Error("resolver must not run after an invalid selection")
	}
	if !strings.Contains(result.Tasks[0].ErrorDetail, "made-up.yaml") {
		t.Errorf("error detail should name the invalid id, got %q", result.Tasks[0].ErrorDetail)
	}
}

func TestRunResolverNotFound(t *testing.T) {
	cfg := baseConfig()
	cfg.Decomposer = &stubDecomposer{tasks: []string{"only task"}}
	cfg.Resolver = &stubResolver{fn: func(string, *models.SpecEntry, map[int]any) (ports.ResolutionDecision, error) {
		return ports.NotFound("endpoint requires an id the task does not provide"), nil
	}}

	result := mustRun(t, cfg, "unresolvable")

	if result.Failed != 1 {
		t.Fatalf("expected 1 failed, got %d", result.Failed)
	}
	if !strings.Contains(result.Tasks[0].ErrorDetail, "endpoint requires an id") {
		t.Errorf("error detail should carry the resolver reason, got %q", result.Tasks[0].ErrorDetail)
	}
}

func TestRunExecuteRetriesThenFails(t *testing.T) {
	cfg := baseConfig()
	cfg.Decomposer = &stubDecomposer{tasks: []string{"flaky call", "next task"}}
	cfg.ExecuteRetry = retry.Policy{MaxAttempts: 3}
	attempts := 0
	cfg.Executor = &stubExecutor{fn: func(call *models.CallDescriptor) (models.Outcome, error) {
		if strings.Contains(call.URL, "products") {
			attempts++
			return models.Outcome{StatusCode: 503, Error: "API call failed with status 503"}, nil
		}
		return models.Outcome{StatusCode: 200, Body: "fine"}, nil
	}}
	cfg.Selector = &stubSelector{fn: func(desc string) (ports.SelectionDecision, error) {
		if strings.Contains(desc, "flaky") {
			return ports.Selected("products.yaml"), nil
		}
		return ports.Selected("orders.yaml"), nil
	}}

	result := mustRun(t, cfg, "partial failure")

	if attempts != 3 {
		t.Errorf("executor attempts = %d, want 3", attempts)
	}
	if result.Failed != 1 || result.Completed != 1 {
		t.Fatalf("expected 1 failed and 1 completed, got %d/%d", result.Failed, result.Completed)
	}
	first := result.Tasks[0]
	if first.Status != models.TaskStatusError {
		t.Fatalf("flaky task status = %s, want error", first.Status)
	}
	if !strings.Contains(first.ErrorDetail, "503") {
		t.Errorf("error detail should carry the status, got %q", first.ErrorDetail)
	}
	if first.Attempts.Execute != 3 {
		t.Errorf("recorded execute attempts = %d, want 3", first.Attempts.Execute)
	}
}

func TestRunExecuteRecoversOnRetry(t *testing.T) {
	cfg := baseConfig()
	cfg.Decomposer = &stubDecomposer{tasks: []string{"eventually works"}}
	calls := 0
	cfg.Executor = &stubExecutor{fn: func(*models.CallDescriptor) (models.Outcome, error) {
		calls++
		if calls == 1 {
			return models.Outcome{}, errors.New("connection reset")
		}
		return models.Outcome{StatusCode: 200, Body: "recovered"}, nil
	}}

	result := mustRun(t, cfg, "retry recovery")

	if result.Completed != 1 {
		t.Fatalf("expected the task to complete after retry, got %d completed", result.Completed)
	}
	if calls != 2 {
		t.Errorf("executor calls = %d, want 2", calls)
	}
}

func TestRunSpecLoadFailureIsFatal(t *testing.T) {
	cfg := baseConfig()
	cfg.SpecLoader = func([]string) (map[string]*models.SpecEntry, []string, error) {
		return nil, nil, errors.New("no specifications could be loaded")
	}

	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = o.Run(context.Background(), "anything", nil)
	if err == nil {
		t.Fatal("expected a fatal error when no specs load")
	}
	if !strings.Contains(err.Error(), "load specs") {
		t.Errorf("error = %v, want load specs wrap", err)
	}
}

type countingDecomposer struct {
	stubDecomposer
	calls int
}

func (c *countingDecomposer) Decompose(ctx context.Context, query string) ([]string, error) {
	c.calls++
	return c.stubDecomposer.Decompose(ctx, query)
}

func TestRunEmptySpecSetIsFatal(t *testing.T) {
	decomposer := &countingDecomposer{stubDecomposer: stubDecomposer{tasks: []string{"task"}}}
	cfg := baseConfig()
	cfg.SpecLoader = func([]string) (map[string]*models.SpecEntry, []string, error) {
		return map[string]*models.SpecEntry{}, nil, nil
	}
	cfg.Decomposer = decomposer

	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := o.Run(context.Background(), "anything", nil)
	if err == nil {
		t.Fatal("expected a fatal error when the loader returns zero specs")
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
	if !strings.Contains(err.Error(), "no specifications loaded") {
		t.Errorf("error = %v, want no specifications loaded", err)
	}
	if decomposer.calls != 0 {
		t.Errorf("decomposition ran %d times without loaded specs", decomposer.calls)
	}
}

func TestRunEmptyDecompositionIsFatal(t *testing.T) {
	cfg := baseConfig()
	cfg.Decomposer = &stubDecomposer{tasks: nil}

	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = o.Run(context.Background(), "anything", []string{"specs"})
	if err == nil {
		t.Fatal("expected a fatal error when decomposition yields no tasks")
	}
	if !strings.Contains(err.Error(), "decompose") {
		t.Errorf("error = %v, want decompose wrap", err)
	}
}

func TestRunSummarizerFallback(t *testing.T) {
	cfg := baseConfig()
	cfg.Summarizer = &stubSummarizer{fn: func(string, map[int]ports.CompletedTask) (string, error) {
		return "", errors.New("model unavailable")
	}}

	result := mustRun(t, cfg, "fallback run")

	if result.Summary == "" {
		t.Fatal("run must still produce a summary when the summarizer fails")
	}
	if !strings.Contains(result.Summary, "Task 1") || !strings.Contains(result.Summary, "Task 2") {
		t.Errorf("fallback summary should list results, got %q", result.Summary)
	}
	if result.Completed != 2 {
		t.Errorf("summarizer failure must not affect task outcomes, got %d completed", result.Completed)
	}
}

func TestRunStopSignal(t *testing.T) {
	cfg := baseConfig()
	cfg.Decomposer = &stubDecomposer{tasks: []string{"first", "second", "third"}}
	processed := 0
	cfg.Executor = &stubExecutor{fn: func(*models.CallDescriptor) (models.Outcome, error) {
		processed++
		return models.Outcome{StatusCode: 200, Body: "ok"}, nil
	}}
	cfg.ShouldStop = func() bool { return processed >= 1 }

	result := mustRun(t, cfg, "interrupted run")

	if !result.Stopped {
		t.Fatal("result should report the run as stopped")
	}
	if result.Completed != 1 {
		t.Errorf("expected 1 completed before the stop, got %d", result.Completed)
	}
	if result.Failed != 2 {
		t.Errorf("expected the 2 remaining tasks marked failed, got %d", result.Failed)
	}
	for _, task := range result.Tasks[1:] {
		if !strings.Contains(task.ErrorDetail, "stopped") {
			t.Errorf("task %d detail = %q, want stop reason", task.ID, task.ErrorDetail)
		}
	}
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	cfg := baseConfig()
	cfg.Decomposer = &stubDecomposer{tasks: []string{"only task"}}
	cfg.EventBuffer = 64

	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := o.Run(context.Background(), "events", []string{"specs"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := map[EventType]bool{}
	for event := range o.Events() {
		seen[event.Type] = true
	}
	for _, want := range []EventType{
		EventRunStarted, EventSpecsLoaded, EventTasksDecomposed,
		EventTaskStarted, EventSpecSelected, EventCallPrepared,
		EventTaskCompleted, EventRunFinished,
	} {
		if !seen[want] {
			t.Errorf("missing event %s", want)
		}
	}
}
