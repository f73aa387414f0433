package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers with no choices
var ErrEmptyResponse = errors.New("empty response from provider")

// Role identifies the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn in a conversation with the model
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`  // Set on assistant turns that request tools
	ToolCallID string     `json:"toolCallId,omitempty"` // Set on tool turns
	Name       string     `json:"name,omitempty"`       // Tool name on tool turns
}

// ToolCall is a model request to run a named tool with JSON arguments
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDef describes a tool the model may call. Parameters is a JSON schema.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatRequest is the provider-neutral input for one model call
type ChatRequest struct {
	System      string
	Messages    []Message
	Tools       []ToolDef
	JSON        bool // Ask for a single JSON object reply
	Model       string
	MaxTokens   int
	Temperature *float32
}

// ChatResponse is the provider-neutral result of one model call
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Model        string
	TokensUsed   int
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Chat runs one model call and waits for the complete reply
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream runs one model call, passing text deltas to onDelta as they
	// arrive. The returned response holds the assembled text and tool calls.
	ChatStream(ctx context.Context, req ChatRequest, onDelta func(string)) (*ChatResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "openrouter", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature applied when a request does not set its own
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Timeout:     120,
		MaxTokens:   4096,
		Temperature: 0.2,
	}
}

func (c Config) maxTokens(req ChatRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 4096
}

func (c Config) temperature(req ChatRequest) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.Temperature
}
