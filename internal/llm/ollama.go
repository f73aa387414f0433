package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/util"
)

// OllamaProvider implements the Provider interface for local Ollama models
// through the native /api/chat endpoint.
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
	logger     *zerolog.Logger
}

// Ollama API structures
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model      string        `json:"model"`
	CreatedAt  string        `json:"created_at"`
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason,omitempty"`

	// Token counts (only present when done=true)
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config, logger *zerolog.Logger) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, qwen2.5)")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 300 * time.Second // Local models can be slow
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
		config: config,
		logger: logger,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks if the Ollama daemon answers
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/api/tags", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Ollama availability check failed (request creation)")
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Str("base_url", p.baseURL).Msg("Ollama availability check failed (connection)")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn().Int("status", resp.StatusCode).Str("base_url", p.baseURL).Msg("Ollama availability check failed")
		return false
	}

	return true
}

// Chat sends a non-streaming chat request
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.ChatStream(ctx, req, nil)
}

// ChatStream sends a chat request. With onDelta set the reply is read as
// newline-delimited JSON chunks.
func (p *OllamaProvider) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string)) (*ChatResponse, error) {
	apiReq := p.buildRequest(req)
	apiReq.Stream = onDelta != nil

	body, err := p.do(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}
	defer func() { _ = body.Close() }()

	out := &ChatResponse{}
	var content strings.Builder
	var calls []ollamaToolCall

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}

		if delta := chunk.Message.Content; delta != "" {
			content.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		calls = append(calls, chunk.Message.ToolCalls...)

		if chunk.Done {
			out.Model = chunk.Model
			out.FinishReason = chunk.DoneReason
			out.TokensUsed = chunk.PromptEvalCount + chunk.EvalCount
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out.Content = content.String()
	for i, c := range calls {
		args := string(c.Function.Arguments)
		if args == "" || args == "null" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      c.Function.Name,
			Arguments: args,
		})
	}

	return out, nil
}

func (p *OllamaProvider) buildRequest(req ChatRequest) ollamaRequest {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	apiReq := ollamaRequest{
		Model: model,
		Options: ollamaOptions{
			Temperature: p.config.temperature(req),
			NumPredict:  p.config.maxTokens(req),
		},
	}
	if req.JSON {
		apiReq.Format = "json"
	}

	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msg := ollamaMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == RoleTool {
			msg.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			var call ollamaToolCall
			call.Function.Name = tc.Name
			call.Function.Arguments = json.RawMessage(tc.Arguments)
			if !json.Valid(call.Function.Arguments) {
				call.Function.Arguments = json.RawMessage("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
		apiReq.Messages = append(apiReq.Messages, msg)
	}

	for _, tool := range req.Tools {
		var t ollamaTool
		t.Type = "function"
		t.Function.Name = tool.Name
		t.Function.Description = tool.Description
		t.Function.Parameters = tool.Parameters
		apiReq.Tools = append(apiReq.Tools, t)
	}

	return apiReq
}

// do posts to /api/chat and returns the body on success
func (p *OllamaProvider) do(ctx context.Context, apiReq ollamaRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(httpResp.Body)
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	return httpResp.Body, nil
}
