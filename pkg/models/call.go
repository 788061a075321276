package models

// CallDescriptor is the resolved, ready-to-execute representation of an
// API call.
type CallDescriptor struct {
	// Method is the HTTP method (GET, POST, ...).
	Method string `json:"method"`
	// URL is the full request URL with path parameters substituted.
	URL string `json:"url"`
	// Headers are request headers, if any.
	Headers map[string]string `json:"headers,omitempty"`
	// Query are query-string parameters, if any.
	Query map[string]string `json:"query,omitempty"`
	// Body is the request body; maps are serialized as JSON.
	Body any `json:"body,omitempty"`
}

// Outcome is the result of executing a call descriptor. Failure is
// signaled through the Error field, never by aborting the caller.
type Outcome struct {
	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int `json:"status_code"`
	// Body is the response payload, JSON-decoded when possible.
	Body any `json:"body,omitempty"`
	// Error is a non-empty description when the call failed.
	Error string `json:"error,omitempty"`
}

// Success reports whether the call completed with a 2xx status and no
// transport or protocol error.
func (o Outcome) Success() bool {
	return o.Error == "" && o.StatusCode >= 200 && o.StatusCode < 300
}
