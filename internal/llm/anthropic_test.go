package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicProvider_Chat_Success(t *testing.T) {
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

		var got anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&got)
		if !strings.Contains(got.System, "JSON") {
			t.Errorf("Expected JSON instruction appended to system prompt, got %q", got.System)
		}

		resp := anthropicResponse{
			ID:    "msg_123",
			Type:  "message",
			Role:  "assistant",
			Model: "claude-sonnet-4-20250514",
			Content: []anthropicBlock{
				{Type: "text", Text: `{"replacements":[]}`},
			},
			StopReason: "end_turn",
		}
		resp.Usage.InputTokens = 50
		resp.Usage.OutputTokens = 50
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5}, nil)
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
	if resp.TokensUsed != 100 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
}

func TestAnthropicProvider_Chat_ToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&got)
		if len(got.Tools) != 1 || got.Tools[0].Name != "search" {
			t.Errorf("Expected search tool, got %+v", got.Tools)
		}

		resp := anthropicResponse{
			Content: []anthropicBlock{
				{Type: "text", Text: "Let me check."},
				{Type: "tool_use", ID: "toolu_1", Name: "search", Input: json.RawMessage(`{"query":"acme funding"}`)},
			},
			StopReason: "tool_use",
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "check acme"}},
		Tools:    []ToolDef{{Name: "search", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != "Let me check." {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "toolu_1" || resp.ToolCalls[0].Arguments != `{"query":"acme funding"}` {
		t.Errorf("Unexpected tool call: %+v", resp.ToolCalls[0])
	}
}

func TestAnthropicProvider_ChatStream_Incremental(t *testing.T) {
	events := []string{
		`{"type":"message_start","message":{"id":"msg_1","model":"claude-test","content":[],"usage":{"input_tokens":12}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"## Overall "}}`,
		`{"type":"ping"}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Assessment"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_9","name":"scrape","input":{}}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"url\":"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"https://acme.example\"}"}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":30}}`,
		`{"type":"message_stop"}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&got)
		if !got.Stream {
			t.Error("Expected stream=true in request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			var typed struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal([]byte(ev), &typed)
			_, _ = w.Write([]byte("event: " + typed.Type + "\ndata: " + ev + "\n\n"))
		}
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	var deltas []string
	resp, err := provider.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "check acme"}},
	}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	if len(deltas) != 2 || deltas[0] != "## Overall " || deltas[1] != "Assessment" {
		t.Errorf("Unexpected deltas: %q", deltas)
	}
	if resp.Content != "## Overall Assessment" {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if resp.Model != "claude-test" || resp.FinishReason != "tool_use" || resp.TokensUsed != 42 {
		t.Errorf("Unexpected metadata: %+v", resp)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "toolu_9" || resp.ToolCalls[0].Name != "scrape" || resp.ToolCalls[0].Arguments != `{"url":"https://acme.example"}` {
		t.Errorf("Unexpected tool call: %+v", resp.ToolCalls[0])
	}
}

func TestAnthropicProvider_ChatStream_ErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "Overloaded") {
		t.Errorf("Expected overloaded stream error, got %v", err)
	}
}

func TestAnthropicProvider_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "Invalid request"}}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Invalid request") {
		t.Errorf("Expected error message to contain 'Invalid request', got %v", err)
	}
}

func TestAnthropicProvider_Chat_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"msg","content":[]}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != ErrEmptyResponse {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestToAnthropicMessages_FoldsToolResults(t *testing.T) {
	msgs := toAnthropicMessages([]Message{
		{Role: RoleUser, Content: "go"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Name: "search", Arguments: `{"query":"x"}`},
			{ID: "b", Name: "scrape", Arguments: `not json`},
		}},
		{Role: RoleTool, ToolCallID: "a", Content: "r1"},
		{Role: RoleTool, ToolCallID: "b", Content: "r2"},
	})

	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if string(msgs[1].Content[1].Input) != "{}" {
		t.Errorf("Expected invalid arguments replaced by {}, got %s", msgs[1].Content[1].Input)
	}
	if msgs[2].Role != "user" || len(msgs[2].Content) != 2 {
		t.Errorf("Expected both tool results in one user turn, got %+v", msgs[2])
	}
	if msgs[2].Content[1].ToolUseID != "b" {
		t.Errorf("Unexpected tool_use_id: %s", msgs[2].Content[1].ToolUseID)
	}
}

func TestAnthropicProvider_MissingKey(t *testing.T) {
	if _, err := NewAnthropicProvider(Config{}, nil); err == nil {
		t.Error("Expected error for missing API key")
	}
}
