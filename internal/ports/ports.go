// Package ports defines the decision and executor capabilities the
// orchestrator calls into. Implementations make judgment calls whose
// internal reasoning is out of scope here; the orchestrator only
// depends on these contracts.
package ports

import (
	"context"

	"github.com/ShayCichocki/apiflow/pkg/models"
)

// SelectionKind enumerates the outcomes of a spec selection.
type SelectionKind int

const (
	// SelectionSelected means a spec id was chosen.
	SelectionSelected SelectionKind = iota
	// SelectionNone means the selector declined to pick any spec.
	SelectionNone
)

// SelectionDecision is the typed outcome of SelectSpec. The chosen id
// is not trusted until validated against the loaded spec set.
type SelectionDecision struct {
	Kind   SelectionKind
	SpecID string
	// Reason carries the selector's explanation for a None decision.
	Reason string
}

// Selected returns a decision carrying the chosen spec id.
func Selected(specID string) SelectionDecision {
	return SelectionDecision{Kind: SelectionSelected, SpecID: specID}
}

// NoSelection returns an explicit "none" decision.
func NoSelection(reason string) SelectionDecision {
	return SelectionDecision{Kind: SelectionNone, Reason: reason}
}

// ResolutionKind enumerates the outcomes of call resolution.
type ResolutionKind int

const (
	// ResolutionResolved means a concrete call descriptor was produced.
	ResolutionResolved ResolutionKind = iota
	// ResolutionNotFound means no suitable endpoint could be resolved.
	ResolutionNotFound
)

// ResolutionDecision is the typed outcome of ResolveCall.
type ResolutionDecision struct {
	Kind ResolutionKind
	Call *models.CallDescriptor
	// Reason carries the resolver's explanation for a NotFound decision.
	Reason string
}

// Resolved returns a decision carrying the prepared call.
func Resolved(call *models.CallDescriptor) ResolutionDecision {
	return ResolutionDecision{Kind: ResolutionResolved, Call: call}
}

// NotFound returns an explicit "not found" decision.
func NotFound(reason string) ResolutionDecision {
	return ResolutionDecision{Kind: ResolutionNotFound, Reason: reason}
}

// CompletedTask pairs a completed task's description with its result
// payload for summarization.
type CompletedTask struct {
	Description string
	Result      any
}

// Decomposer breaks a natural-language query into an ordered list of
// task descriptions. It must return at least one item or an error.
type Decomposer interface {
	Decompose(ctx context.Context, query string) ([]string, error)
}

// SpecSelector picks the most relevant specification for a task given
// the available spec summaries, or declines with an explicit None.
type SpecSelector interface {
	SelectSpec(ctx context.Context, taskDescription string, summaries map[string]string) (SelectionDecision, error)
}

// CallResolver finds the endpoint within one parsed spec that fulfills
// the task and prepares a call descriptor, reading results produced by
// strictly earlier tasks for parameter values.
type CallResolver interface {
	ResolveCall(ctx context.Context, taskDescription string, spec *models.SpecEntry, priorResults map[int]any) (ResolutionDecision, error)
}

// Executor performs a resolved API call. Failures are reported through
// the outcome's Error field; a returned error means the invocation
// itself could not be carried out.
type Executor interface {
	Execute(ctx context.Context, call *models.CallDescriptor) (models.Outcome, error)
}

// Summarizer produces the final natural-language answer from the
// original query and the completed tasks' results.
type Summarizer interface {
	Summarize(ctx context.Context, query string, results map[int]CompletedTask) (string, error)
}
