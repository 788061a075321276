package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/apiflow/internal/ports"
	"github.com/ShayCichocki/apiflow/internal/spec"
	"github.com/ShayCichocki/apiflow/pkg/models"
)

// completer abstracts the model call so decision logic can be tested
// against canned responses.
type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Decider implements the four decision ports against one LLM client.
type Decider struct {
	llm completer
	// specPromptLimit caps how many bytes of a serialized spec go into
	// a resolution prompt.
	specPromptLimit int
}

// DeciderOption customizes a Decider.
type DeciderOption func(*Decider)

// WithSpecPromptLimit overrides the default spec truncation limit.
func WithSpecPromptLimit(limit int) DeciderOption {
	return func(d *Decider) {
		d.specPromptLimit = limit
	}
}

// NewDecider creates a Decider backed by the given client.
func NewDecider(client *Client, opts ...DeciderOption) *Decider {
	d := &Decider{
		llm:             client,
		specPromptLimit: 8000,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose breaks the query into an ordered list of short, actionable
// steps. If the model's answer carries no numbered lines, the whole
// answer becomes a single task.
func (d *Decider) Decompose(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Break down the following user request into a sequence of short, actionable, numbered steps. "+
			"Each step should ideally correspond to a single conceptual operation or API call required to fulfill the request. "+
			"Focus on the *actions* needed. Do not add conversational parts or explanations, just the numbered steps.\n"+
			"User Request: %q\n"+
			"Numbered Steps:", query)

	response, err := d.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	steps := ParseNumberedSteps(response)
	if len(steps) == 0 {
		return nil, fmt.Errorf("decompose: model produced no steps")
	}
	return steps, nil
}

// SelectSpec asks the model for the single most relevant spec id. The
// returned id is not validated here; the orchestrator checks it against
// the loaded set.
func (d *Decider) SelectSpec(ctx context.Context, taskDescription string, summaries map[string]string) (ports.SelectionDecision, error) {
	ids := make([]string, 0, len(summaries))
	for id := range summaries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var listing strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&listing, "- ID: %s\n  Summary: %s\n", id, summaries[id])
	}

	prompt := fmt.Sprintf(
		"Given the following task description and available API specification summaries, "+
			"identify the single most relevant API specification ID (e.g., filename) to use for this task. "+
			"Only output the spec ID, nothing else. If none of the specifications fit, output the word none.\n\n"+
			"Task Description:\n%s\n\n"+
			"Available Specifications:\n%s\n"+
			"Most Relevant Spec ID:", taskDescription, listing.String())

	response, err := d.llm.Complete(ctx, prompt)
	if err != nil {
		return ports.SelectionDecision{}, fmt.Errorf("select spec: %w", err)
	}

	id := strings.TrimSpace(response)
	if id == "" || strings.EqualFold(id, "none") {
		return ports.NoSelection("model declined to select a specification"), nil
	}
	return ports.Selected(id), nil
}

// ResolveCall asks the model to pick the endpoint inside one spec and
// fill its parameters from the task description and prior results. An
// answer that cannot be turned into a complete call descriptor is an
// explicit NotFound decision, never silently retried.
func (d *Decider) ResolveCall(ctx context.Context, taskDescription string, entry *models.SpecEntry, priorResults map[int]any) (ports.ResolutionDecision, error) {
	specText, err := spec.MarshalForPrompt(entry, d.specPromptLimit)
	if err != nil {
		return ports.ResolutionDecision{}, err
	}

	contextResults := "None"
	if len(priorResults) > 0 {
		if encoded, err := json.MarshalIndent(priorResults, "", "  "); err == nil {
			contextResults = string(encoded)
		}
	}

	prompt := fmt.Sprintf(`Analyze the following OpenAPI specification and the user task description.
Identify the single best API endpoint (method and path) to fulfill the task.
Determine the necessary parameters (query, path, headers, request body) based on the spec.
Extract parameter values from the task description or the provided context results.
If a required parameter value cannot be found, use the placeholder "%s" for that value.

Task Description:
%s

Context from previous steps (JSON):
%s

OpenAPI Specification (YAML):
`+"```yaml\n%s\n```"+`

Based on the analysis, provide the details for the API call in YAML format below.
Include:
- method: The HTTP method (e.g., GET, POST).
- path: The endpoint path (e.g., /users/{userId}).
- server_base_url: The base URL found in the spec's servers section (use the first one if multiple).
- parameters: A mapping with keys path, query, header, and body.
  - For path, query, header: map parameter name to its extracted value or "%s".
  - For body: provide the structured request body with extracted values, or null if no body is needed.

API Call Details (YAML):`, fillMePlaceholder, taskDescription, contextResults, specText, fillMePlaceholder)

	response, err := d.llm.Complete(ctx, prompt)
	if err != nil {
		return ports.ResolutionDecision{}, fmt.Errorf("resolve call: %w", err)
	}

	return BuildCall(response, entry)
}

// Summarize produces the final answer from the completed tasks'
// results.
func (d *Decider) Summarize(ctx context.Context, query string, results map[int]ports.CompletedTask) (string, error) {
	prompt := fmt.Sprintf(
		"Based on the original user request and the results obtained from the executed tasks, "+
			"provide a concise summary answering the user's request. "+
			"Integrate the relevant information from the task results naturally. "+
			"If no relevant results were found or tasks failed, state that clearly.\n\n"+
			"Original User Request:\n%s\n\n"+
			"Results from Executed Tasks:\n%s\n\n"+
			"Final Summary:", query, FormatResults(results))

	summary, err := d.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// FormatResults renders completed task results for a summarization
// prompt, in task order.
func FormatResults(results map[int]ports.CompletedTask) string {
	if len(results) == 0 {
		return "No successful task results were obtained."
	}

	ids := make([]int, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var formatted []string
	for _, id := range ids {
		entry := results[id]
		resultText := ""
		if encoded, err := json.MarshalIndent(entry.Result, "", "  "); err == nil {
			resultText = string(encoded)
		} else {
			resultText = fmt.Sprintf("%v", entry.Result)
		}
		formatted = append(formatted, fmt.Sprintf("Task %d: %s\nResult:\n```json\n%s\n```", id, entry.Description, resultText))
	}
	return strings.Join(formatted, "\n\n")
}
