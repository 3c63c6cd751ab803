package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func testSchema() *Schema {
	return &Schema{
		Name:        "test-scenario",
		Description: "A practice scenario",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":      map[string]any{"type": "string"},
				"turns":   map[string]any{"type": "integer", "minimum": 0},
				"speaker": map[string]any{"type": "string", "enum": []any{"User", "Bot"}},
			},
			"required": []any{"id", "turns"},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"id":"cafe","turns":3,"speaker":"Bot"}`, false},
		{"without optional", `{"id":"cafe","turns":0}`, false},
		{"missing required", `{"id":"cafe"}`, true},
		{"wrong type", `{"id":"cafe","turns":"three"}`, true},
		{"invalid enum", `{"id":"cafe","turns":1,"speaker":"System"}`, true},
		{"malformed", `{not json}`, true},
		{"empty", ``, true},
		{"json fence", "```json\n{\"id\":\"cafe\",\"turns\":1}\n```", false},
		{"bare fence", "```\n{\"id\":\"cafe\",\"turns\":1}```", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateResponse(testSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var invErr *ErrInvalidResponse
				if !errors.As(err, &invErr) {
					t.Fatalf("expected ErrInvalidResponse, got: %T", err)
				}
			}
		})
	}
}

func TestValidateResponse_ReturnsCleanedJSON(t *testing.T) {
	out, err := validateResponse(testSchema(), json.RawMessage("```json\n{\"id\":\"a\",\"turns\":2}\n```"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"id":"a","turns":2}` {
		t.Fatalf("unexpected cleaned content: %s", out)
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	raw := json.RawMessage("plain text reply")
	out, err := validateResponse(nil, raw)
	if err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
	if string(out) != "plain text reply" {
		t.Fatalf("nil schema must not touch content, got %q", out)
	}
}

func TestValidateResponse_ArrayOfObjects(t *testing.T) {
	schema := &Schema{
		Name:        "test-batch",
		Description: "Batch test",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"scenarios": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"goal": map[string]any{"type": "string"},
						},
						"required": []any{"goal"},
					},
				},
			},
			"required": []any{"scenarios"},
		},
	}

	valid := json.RawMessage(`{"scenarios":[{"goal":"order coffee"},{"goal":"buy a ticket"}]}`)
	if _, err := validateResponse(schema, valid); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	invalid := json.RawMessage(`{"scenarios":[{"goal":1}]}`)
	if _, err := validateResponse(schema, invalid); err == nil {
		t.Fatal("expected error for wrong item type")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n[1,2]\n```": "[1,2]",
		"```\n[1]\n```":       "[1]",
		"  [3]  ":             "[3]",
		"```json [4]":         "[4]",
	}
	for in, want := range tests {
		if got := string(StripCodeFence([]byte(in))); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
