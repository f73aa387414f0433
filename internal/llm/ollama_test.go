package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaProvider_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}

		var got ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Stream {
			t.Error("Expected non-streaming request")
		}
		if got.Format != "json" {
			t.Errorf("Expected json format, got %q", got.Format)
		}
		if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
			t.Errorf("Expected system + user messages, got %+v", got.Messages)
		}

		resp := ollamaResponse{
			Model:           "llama3.1",
			Message:         ollamaMessage{Role: "assistant", Content: `{"replacements":[]}`},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 10,
			EvalCount:       20,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1", Timeout: 5}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Chat(context.Background(), ChatRequest{
		System:   "annotate",
		Messages: []Message{{Role: RoleUser, Content: "page"}},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != `{"replacements":[]}` {
		t.Errorf("Unexpected content: %s", resp.Content)
	}
	if resp.TokensUsed != 30 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
}

func TestOllamaProvider_ChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"model":"qwen2.5","message":{"role":"assistant","content":"Hello"},"done":false}`,
			`{"model":"qwen2.5","message":{"role":"assistant","content":" world"},"done":false}`,
			`{"model":"qwen2.5","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"search","arguments":{"query":"acme"}}}]},"done":false}`,
			`{"model":"qwen2.5","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","eval_count":7}`,
		}
		for _, l := range lines {
			_, _ = fmt.Fprintln(w, l)
		}
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "qwen2.5"}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	var deltas []string
	resp, err := provider.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	if strings.Join(deltas, "") != "Hello world" {
		t.Errorf("Unexpected deltas: %v", deltas)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "search" {
		t.Fatalf("Unexpected tool calls: %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Arguments != `{"query":"acme"}` {
		t.Errorf("Unexpected arguments: %s", resp.ToolCalls[0].Arguments)
	}
	if resp.TokensUsed != 7 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
}

func TestOllamaProvider_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1", Timeout: 5}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("Expected error to contain 'model not found', got %v", err)
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1"}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

func TestOllamaProvider_RequiresModel(t *testing.T) {
	if _, err := NewOllamaProvider(Config{}, nil); err == nil {
		t.Error("Expected error for missing model")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		config  Config
		want    string
		wantErr bool
	}{
		{Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{Config{Provider: "OpenRouter", APIKey: "k"}, "openrouter", false},
		{Config{Provider: "claude", APIKey: "k"}, "anthropic", false},
		{Config{Provider: "ollama", Model: "llama3.1"}, "ollama", false},
		{Config{Provider: "gemini"}, "", true},
		{Config{Provider: "openai"}, "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(tt.config, nil)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.config.Provider)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.config.Provider, err)
			continue
		}
		if p.Name() != tt.want {
			t.Errorf("%s: expected name %s, got %s", tt.config.Provider, tt.want, p.Name())
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		`  {"a":1}  `:             `{"a":1}`,
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
