package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without tag", "```\n[1, 2]\n```", `[1, 2]`},
		{"prose around", `Sure! Here it is: {"a": {"b": "}"}} Hope that helps.`, `{"a": {"b": "}"}}`},
		{"array first", `[{"kind": "Positive"}] trailing`, `[{"kind": "Positive"}]`},
		{"skips broken brace", `{oops} then {"ok": true}`, `{"ok": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if err != nil {
				t.Fatalf("ExtractJSON failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtractJSON_None(t *testing.T) {
	for _, in := range []string{"", "no json here", "{unterminated"} {
		if _, err := ExtractJSON(in); !errors.Is(err, ErrNoJSON) {
			t.Errorf("ExtractJSON(%q): expected ErrNoJSON, got %v", in, err)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type verdict struct {
		Relevant  bool   `json:"relevant"`
		Rationale string `json:"rationale"`
	}

	v, err := DecodeJSON[verdict]("```json\n{\"relevant\": true, \"rationale\": \"covers encryption\"}\n```")
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if !v.Relevant || v.Rationale != "covers encryption" {
		t.Errorf("unexpected value: %+v", v)
	}

	if _, err := DecodeJSON[verdict](`{"relevant": "maybe"}`); err == nil {
		t.Error("expected type mismatch error")
	}
}
