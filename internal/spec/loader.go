// Package spec loads and summarizes machine-readable API
// specifications for selection and call resolution.
package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/apiflow/pkg/models"
)

// specPatterns are the filename patterns recognized inside a spec
// directory. JSON is parsed by the YAML decoder (YAML 1.2 superset).
var specPatterns = []string{"*.yaml", "*.yml", "*.json"}

// LoadAll loads specifications from a source: either a single
// directory path or an explicit list of file paths. The returned
// mapping is keyed by filename and immutable afterward. Files that
// cannot be read or parsed are skipped with a warning; loading zero
// specs is an error because a run cannot proceed without any.
func LoadAll(source []string) (map[string]*models.SpecEntry, []string, error) {
	files, err := expandSource(source)
	if err != nil {
		return nil, nil, err
	}

	specs := make(map[string]*models.SpecEntry)
	var warnings []string
	for _, path := range files {
		entry, err := loadOne(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping spec %s: %v", path, err))
			continue
		}
		specs[entry.ID] = entry
	}

	if len(specs) == 0 {
		return nil, warnings, fmt.Errorf("no API specifications could be loaded from %v", source)
	}
	return specs, warnings, nil
}

// expandSource turns the source argument into a concrete file list.
func expandSource(source []string) ([]string, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("spec source is empty")
	}

	if len(source) == 1 {
		if info, err := os.Stat(source[0]); err == nil && info.IsDir() {
			var files []string
			for _, pattern := range specPatterns {
				matches, err := filepath.Glob(filepath.Join(source[0], pattern))
				if err != nil {
					return nil, fmt.Errorf("glob %s: %w", pattern, err)
				}
				files = append(files, matches...)
			}
			sort.Strings(files)
			return files, nil
		}
	}
	return source, nil
}

func loadOne(path string) (*models.SpecEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("empty document")
	}

	id := filepath.Base(path)
	return &models.SpecEntry{
		ID:      id,
		Parsed:  parsed,
		Summary: buildSummary(id, parsed),
	}, nil
}

// buildSummary produces the short description shown to the selector:
// the spec's title, its first description line, and how many paths it
// declares.
func buildSummary(id string, parsed map[string]any) string {
	title := "N/A"
	desc := ""
	if info, ok := parsed["info"].(map[string]any); ok {
		if t, ok := info["title"].(string); ok && t != "" {
			title = t
		}
		if d, ok := info["description"].(string); ok {
			desc = firstLine(d)
		}
	}

	summary := fmt.Sprintf("Spec: %s - Title: %s", id, title)
	if desc != "" {
		summary += " - " + desc
	}
	if paths, ok := parsed["paths"].(map[string]any); ok && len(paths) > 0 {
		summary += fmt.Sprintf(" (%d paths)", len(paths))
	}
	return summary
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// MarshalForPrompt serializes a parsed spec back to YAML for inclusion
// in a resolution prompt, truncated to at most limit bytes. A limit of
// 0 or less means no truncation.
func MarshalForPrompt(entry *models.SpecEntry, limit int) (string, error) {
	out, err := yaml.Marshal(entry.Parsed)
	if err != nil {
		return "", fmt.Errorf("marshal spec %s: %w", entry.ID, err)
	}
	text := string(out)
	if limit > 0 && len(text) > limit {
		text = text[:limit]
	}
	return text, nil
}
