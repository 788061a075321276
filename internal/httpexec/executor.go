// Package httpexec performs resolved API calls over HTTP.
package httpexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ShayCichocki/apiflow/pkg/models"
)

// DefaultTimeout bounds a single API call when no timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// Executor performs call descriptors against their live endpoints.
// Failures are reported through the outcome, never by aborting the
// run.
type Executor struct {
	client *http.Client
}

// New creates an executor with the given per-call timeout. A zero
// timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		client: &http.Client{Timeout: timeout},
	}
}

// Execute performs the call and reports the outcome. A non-2xx status
// or transport failure yields an outcome with a non-empty Error; the
// returned error is reserved for a descriptor that cannot be turned
// into a request at all.
func (e *Executor) Execute(ctx context.Context, call *models.CallDescriptor) (models.Outcome, error) {
	if call == nil || call.URL == "" {
		return models.Outcome{}, fmt.Errorf("call descriptor has no URL")
	}

	body, contentType, err := encodeBody(call.Body)
	if err != nil {
		return models.Outcome{Error: fmt.Sprintf("encode request body: %v", err)}, nil
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(call.Method), call.URL, body)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("build request: %w", err)
	}

	for name, value := range call.Headers {
		req.Header.Set(name, value)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if len(call.Query) > 0 {
		q := req.URL.Query()
		for name, value := range call.Query {
			q.Set(name, value)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return models.Outcome{Error: fmt.Sprintf("request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	payload := decodeBody(resp.Body)
	outcome := models.Outcome{
		StatusCode: resp.StatusCode,
		Body:       payload,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome.Error = fmt.Sprintf("API call failed with status %d", resp.StatusCode)
	}
	return outcome, nil
}

// encodeBody prepares the request body. Structured bodies are sent as
// JSON; strings pass through untouched.
func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if v == "" {
			return nil, "", nil
		}
		return strings.NewReader(v), "", nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(encoded), "application/json", nil
	}
}

// decodeBody reads a response body, JSON-decoding when possible and
// falling back to the raw text.
func decodeBody(r io.Reader) any {
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	var decoded any
	if json.Unmarshal(data, &decoded) == nil {
		return decoded
	}
	return string(data)
}
