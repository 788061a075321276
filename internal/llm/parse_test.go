package llm

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/apiflow/internal/ports"
	"github.com/ShayCichocki/apiflow/pkg/models"
)

func TestParseNumberedSteps(t *testing.T) {
	response := `1. Look up the product by SKU
2. Create an order for 5 units
 3.   Confirm the order status`

	steps := ParseNumberedSteps(response)
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %v", len(steps), steps)
	}
	if steps[0] != "Look up the product by SKU" {
		t.Errorf("unexpected first step: %q", steps[0])
	}
	if steps[2] != "Confirm the order status" {
		t.Errorf("unexpected third step: %q", steps[2])
	}
}

func TestParseNumberedSteps_FallbackToWholeResponse(t *testing.T) {
	steps := ParseNumberedSteps("Fetch the product details for SKU ABC-123")
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if !strings.Contains(steps[0], "ABC-123") {
		t.Errorf("unexpected step: %q", steps[0])
	}
}

func TestParseNumberedSteps_EmptyResponse(t *testing.T) {
	if steps := ParseNumberedSteps("   \n  "); len(steps) != 0 {
		t.Errorf("expected no steps, got %v", steps)
	}
}

func specEntry() *models.SpecEntry {
	return &models.SpecEntry{
		ID: "products.yaml",
		Parsed: map[string]any{
			"servers": []any{
				map[string]any{"url": "https://api.example.com/v1/"},
			},
		},
	}
}

func TestBuildCall_FencedYAML(t *testing.T) {
	response := "Here are the details:\n```yaml\n" +
		"method: get\n" +
		"path: /products/{sku}\n" +
		"server_base_url: https://api.example.com/v1\n" +
		"parameters:\n" +
		"  path:\n" +
		"    sku: ABC-123\n" +
		"  query:\n" +
		"    limit: 10\n" +
		"  header: {}\n" +
		"  body: null\n" +
		"```\n"

	decision, err := BuildCall(response, specEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != ports.ResolutionResolved {
		t.Fatalf("expected resolved, got %v (%s)", decision.Kind, decision.Reason)
	}

	call := decision.Call
	if call.Method != "GET" {
		t.Errorf("method = %q", call.Method)
	}
	if call.URL != "https://api.example.com/v1/products/ABC-123" {
		t.Errorf("url = %q", call.URL)
	}
	if call.Query["limit"] != "10" {
		t.Errorf("query limit = %q", call.Query["limit"])
	}
	if call.Body != nil {
		t.Errorf("body = %v, want nil", call.Body)
	}
}

func TestBuildCall_UnfencedAfterMarker(t *testing.T) {
	response := "API Call Details (YAML):\n" +
		"method: POST\n" +
		"path: /orders\n" +
		"server_base_url: \"\"\n" +
		"parameters:\n" +
		"  body:\n" +
		"    sku: ABC-123\n" +
		"    quantity: 5\n"

	decision, err := BuildCall(response, specEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != ports.ResolutionResolved {
		t.Fatalf("expected resolved, got reason %q", decision.Reason)
	}
	// Base URL recovered from the spec's servers section.
	if decision.Call.URL != "https://api.example.com/v1/orders" {
		t.Errorf("url = %q", decision.Call.URL)
	}
	body, ok := decision.Call.Body.(map[string]any)
	if !ok {
		t.Fatalf("body type %T", decision.Call.Body)
	}
	if body["quantity"] != 5 {
		t.Errorf("quantity = %v", body["quantity"])
	}
}

func TestBuildCall_UnfilledPathParam(t *testing.T) {
	response := "```yaml\n" +
		"method: GET\n" +
		"path: /products/{sku}\n" +
		"server_base_url: https://api.example.com\n" +
		"parameters:\n" +
		"  path:\n" +
		"    sku: \"<FILL_ME>\"\n" +
		"```"

	decision, err := BuildCall(response, specEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != ports.ResolutionNotFound {
		t.Fatal("expected NotFound for unfilled path parameter")
	}
	if !strings.Contains(decision.Reason, "sku") {
		t.Errorf("reason should name the parameter: %q", decision.Reason)
	}
}

func TestBuildCall_LeftoverTemplateParam(t *testing.T) {
	response := "```yaml\n" +
		"method: GET\n" +
		"path: /products/{sku}\n" +
		"server_base_url: https://api.example.com\n" +
		"parameters: {}\n" +
		"```"

	decision, err := BuildCall(response, specEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != ports.ResolutionNotFound {
		t.Fatal("expected NotFound for unsubstituted template")
	}
}

func TestBuildCall_MissingMethod(t *testing.T) {
	decision, err := BuildCall("```yaml\npath: /orders\n```", specEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != ports.ResolutionNotFound {
		t.Fatal("expected NotFound for missing method")
	}
}

func TestBuildCall_NoBaseURLAnywhere(t *testing.T) {
	entry := &models.SpecEntry{ID: "bare.yaml", Parsed: map[string]any{}}
	decision, err := BuildCall("```yaml\nmethod: GET\npath: /x\n```", entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != ports.ResolutionNotFound {
		t.Fatal("expected NotFound without any base URL")
	}
}

func TestBuildCall_Garbage(t *testing.T) {
	decision, err := BuildCall("```yaml\n{{nonsense\n```", specEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != ports.ResolutionNotFound {
		t.Fatal("expected NotFound for unparseable output")
	}
}

func TestBuildCall_FillMeQueryParamDropped(t *testing.T) {
	response := "```yaml\n" +
		"method: GET\n" +
		"path: /products\n" +
		"server_base_url: https://api.example.com\n" +
		"parameters:\n" +
		"  query:\n" +
		"    limit: 10\n" +
		"    cursor: \"<FILL_ME>\"\n" +
		"```"

	decision, err := BuildCall(response, specEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Kind != ports.ResolutionResolved {
		t.Fatalf("expected resolved, got %q", decision.Reason)
	}
	if _, ok := decision.Call.Query["cursor"]; ok {
		t.Error("unfilled query parameter should be dropped")
	}
	if decision.Call.Query["limit"] != "10" {
		t.Errorf("limit = %q", decision.Call.Query["limit"])
	}
}
