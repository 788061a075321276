package models

// SpecEntry is a parsed machine-readable API specification plus a short
// natural-language summary used for selection. Entries are immutable
// once loaded.
type SpecEntry struct {
	// ID is the unique identifier, typically the source filename.
	ID string `json:"id"`
	// Parsed is the structured document as loaded from YAML or JSON.
	Parsed map[string]any `json:"-"`
	// Summary is the short description shown to the selector.
	Summary string `json:"summary"`
}

// ServerBaseURL returns the first server URL declared in the parsed
// specification, or "" if none is declared.
func (e *SpecEntry) ServerBaseURL() string {
	servers, ok := e.Parsed["servers"].([]any)
	if !ok || len(servers) == 0 {
		return ""
	}
	first, ok := servers[0].(map[string]any)
	if !ok {
		return ""
	}
	url, _ := first["url"].(string)
	return url
}
