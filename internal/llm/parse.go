package llm

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/apiflow/internal/ports"
	"github.com/ShayCichocki/apiflow/pkg/models"
)

// fillMePlaceholder marks parameter values the model could not
// determine. A placeholder left in a required position fails
// resolution.
const fillMePlaceholder = "<FILL_ME>"

var (
	numberedStepRe = regexp.MustCompile(`(?m)^\s*\d+\.\s*(.+)$`)
	yamlFenceRe    = regexp.MustCompile("(?s)```(?:yaml)?\n(.*?)```")
	pathParamRe    = regexp.MustCompile(`\{+([^{}]+)\}+`)
)

// ParseNumberedSteps extracts "1. do X" style lines from a model
// response. When no numbered lines are found, the whole trimmed
// response is treated as a single step.
func ParseNumberedSteps(response string) []string {
	var steps []string
	for _, match := range numberedStepRe.FindAllStringSubmatch(response, -1) {
		step := strings.TrimSpace(match[1])
		if step != "" {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		if whole := strings.TrimSpace(response); whole != "" {
			steps = append(steps, whole)
		}
	}
	return steps
}

// callDetails is the YAML shape the resolver asks the model to emit.
type callDetails struct {
	Method        string `yaml:"method"`
	Path          string `yaml:"path"`
	ServerBaseURL string `yaml:"server_base_url"`
	Parameters    struct {
		Path   map[string]any `yaml:"path"`
		Query  map[string]any `yaml:"query"`
		Header map[string]any `yaml:"header"`
		Body   any            `yaml:"body"`
	} `yaml:"parameters"`
}

// BuildCall turns a model response into a call descriptor against the
// given spec. Unusable output becomes an explicit NotFound decision
// with the reason retained for the task's error detail.
func BuildCall(response string, entry *models.SpecEntry) (ports.ResolutionDecision, error) {
	yamlText := extractYAML(response)
	if yamlText == "" {
		return ports.NotFound("model response did not contain an API call block"), nil
	}

	var details callDetails
	if err := yaml.Unmarshal([]byte(yamlText), &details); err != nil {
		return ports.NotFound(fmt.Sprintf("unparseable API call details: %v", err)), nil
	}

	if details.Method == "" || details.Path == "" {
		return ports.NotFound("API call details are missing method or path"), nil
	}

	baseURL := details.ServerBaseURL
	if baseURL == "" {
		baseURL = entry.ServerBaseURL()
	}
	if baseURL == "" {
		return ports.NotFound(fmt.Sprintf("no server base URL in model output or spec %s", entry.ID)), nil
	}

	path, err := substitutePathParams(details.Path, details.Parameters.Path)
	if err != nil {
		return ports.NotFound(err.Error()), nil
	}

	call := &models.CallDescriptor{
		Method:  strings.ToUpper(details.Method),
		URL:     strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		Headers: stringifyParams(details.Parameters.Header),
		Query:   stringifyParams(details.Parameters.Query),
		Body:    details.Parameters.Body,
	}
	return ports.Resolved(call), nil
}

// extractYAML pulls the fenced YAML block out of a response, falling
// back to everything after the answer marker when the model skipped
// the fences.
func extractYAML(response string) string {
	if match := yamlFenceRe.FindStringSubmatch(response); match != nil {
		return strings.TrimSpace(match[1])
	}
	if _, after, found := strings.Cut(response, "API Call Details (YAML):"); found {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(response)
}

// substitutePathParams replaces {name} placeholders in a path template.
// A parameter whose value is still the fill-me placeholder, or a
// template placeholder with no value at all, fails resolution.
func substitutePathParams(template string, params map[string]any) (string, error) {
	path := template
	for name, value := range params {
		text := fmt.Sprintf("%v", value)
		if text == fillMePlaceholder {
			return "", fmt.Errorf("required path parameter %q could not be determined", name)
		}
		// Double-brace templates first so "{{sku}}" never degrades into "{value}".
		path = strings.ReplaceAll(path, "{{"+name+"}}", text)
		path = strings.ReplaceAll(path, "{"+name+"}", text)
	}
	if match := pathParamRe.FindStringSubmatch(path); match != nil {
		return "", fmt.Errorf("path parameter %q has no value", match[1])
	}
	return path, nil
}

// stringifyParams flattens parameter values to strings, dropping ones
// the model left unfilled.
func stringifyParams(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for name, value := range params {
		text := fmt.Sprintf("%v", value)
		if text == fillMePlaceholder {
			continue
		}
		out[name] = text
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
