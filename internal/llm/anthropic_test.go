package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/reqtrace/internal/model"
)

func TestAnthropicProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !strings.Contains(req.System, "JSON object") {
			t.Errorf("Expected JSON instruction in system prompt, got %q", req.System)
		}
		if req.MaxTokens != 2048 {
			t.Errorf("Expected default max tokens 2048, got %d", req.MaxTokens)
		}

		resp := anthropicResponse{
			ID:      "msg_123",
			Type:    "message",
			Role:    "assistant",
			Content: []anthropicContent{{Type: "text", Text: `{"relevant": true}`}},
			Model:   "claude-3-5-sonnet-20241022",
			Usage:   anthropicUsage{InputTokens: 50, OutputTokens: 50},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "claude-3-5-sonnet-20241022",
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Generate(context.Background(), GenerateRequest{
		System: "You validate test cases.",
		Prompt: "Is it relevant?",
		Schema: SchemaHint{Name: "validation", JSON: true},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != `{"relevant": true}` {
		t.Errorf("Unexpected text: %s", resp.Text)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Expected 100 tokens, got %d", resp.TokensUsed)
	}
	if resp.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("Unexpected model: %s", resp.Model)
	}
}

func TestAnthropicProvider_Generate_APIError(t *testing.T) {
	tests := []struct {
		status    int
		errType   string
		transient bool
	}{
		{529, "overloaded_error", true},
		{http.StatusTooManyRequests, "rate_limit_error", true},
		{http.StatusBadRequest, "invalid_request_error", false},
		{http.StatusUnauthorized, "authentication_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.errType, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "` + tt.errType + `", "message": "nope"}}`))
			}))
			defer server.Close()

			provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})

			_, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "x"})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errType) {
				t.Errorf("Expected error to mention %s, got %v", tt.errType, err)
			}
			if model.IsTransient(err) != tt.transient {
				t.Errorf("Expected transient=%v, got %v", tt.transient, err)
			}
		})
	}
}

func TestAnthropicProvider_Generate_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "msg_1", "content": [], "model": "claude"}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})

	if _, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatal("Expected error for empty content")
	}
}

func TestAnthropicProvider_ConnectionRefusedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: url, Timeout: 5})

	_, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if !model.IsTransient(err) {
		t.Errorf("Expected transient error, got %v", err)
	}
}

func TestAnthropicProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(Config{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}
