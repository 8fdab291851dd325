package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/toolbridge/toolbridge/internal/registry"
)

func TestRenderTools(t *testing.T) {
	entries := []*registry.Entry{
		{
			ID:             "petstore_getPet",
			Description:    "[petstore] Get a pet",
			InputSchema:    json.RawMessage(`{"type":"object","properties":{"petId":{"type":"integer"}},"required":["petId"]}`),
			Method:         "GET",
			Path:           "/pet/{petId}",
			BaseURL:        "http://api.example.com",
			SecurityHeader: "X-API-Key",
		},
		{
			ID:          "petstore_listPets",
			Description: "   ",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Method:      "GET",
			Path:        "/pet",
			BaseURL:     "http://api.example.com",
		},
	}

	var out bytes.Buffer
	if err := renderTools(&out, entries, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()

	for _, want := range []string{
		"# Tools (2)",
		"## petstore_getPet",
		"- `GET /pet/{petId}` → http://api.example.com",
		"- [petstore] Get a pet",
		"- auth header: `X-API-Key`",
		"## petstore_listPets",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "```json") {
		t.Fatalf("schemas should be omitted without the flag:\n%s", got)
	}

	out.Reset()
	if err := renderTools(&out, entries, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "```json") {
		t.Fatalf("expected schema blocks:\n%s", out.String())
	}
	if !strings.Contains(out.String(), `"petId"`) {
		t.Fatalf("schema block should carry the property names:\n%s", out.String())
	}
}

func TestRenderToolsEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := renderTools(&out, nil, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "# Tools (0)" {
		t.Fatalf("unexpected output: %q", got)
	}
}
