package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/bsdetector/internal/util"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAIProvider implements the Provider interface for OpenAI and any
// endpoint speaking the same chat completions protocol (OpenRouter).
type OpenAIProvider struct {
	client *openai.Client
	config Config
	name   string
	logger *zerolog.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config, logger *zerolog.Logger) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	name := "openai"
	clientConfig := openai.DefaultConfig(config.APIKey)
	if strings.EqualFold(config.Provider, "openrouter") {
		name = "openrouter"
		clientConfig.BaseURL = openRouterBaseURL
	}
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		name:   name,
		logger: logger,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Listing models is the lightest authenticated call
	_, err := p.client.ListModels(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Str("provider", p.name).Msg("LLM availability check failed")
		return false
	}
	return true
}

// Chat runs a single chat completion
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		TokensUsed:   resp.Usage.TotalTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return out, nil
}

// ChatStream runs a streaming chat completion. Tool call fragments arrive
// keyed by index and are stitched together before returning.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string)) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	chatReq := p.buildRequest(req)
	chatReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", p.name, err)
	}
	defer func() { _ = stream.Close() }()

	var content strings.Builder
	var order []int
	calls := make(map[int]*ToolCall)
	out := &ChatResponse{}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s stream error: %w", p.name, err)
		}
		if out.Model == "" {
			out.Model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			out.FinishReason = string(choice.FinishReason)
		}

		if delta := choice.Delta.Content; delta != "" {
			content.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}

		for i, tc := range choice.Delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := calls[idx]
			if !ok {
				call = &ToolCall{}
				calls[idx] = call
				order = append(order, idx)
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			call.Arguments += tc.Function.Arguments
		}
	}

	out.Content = content.String()
	for _, idx := range order {
		out.ToolCalls = append(out.ToolCalls, *calls[idx])
	}

	return out, nil
}

func (p *OpenAIProvider) buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.System, req.Messages),
		MaxTokens:   p.config.maxTokens(req),
		Temperature: p.config.temperature(req),
	}

	for _, tool := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return chatReq
}

func toOpenAIMessages(system string, messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		switch m.Role {
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		case RoleTool:
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.Name
		}
		out = append(out, msg)
	}

	return out
}

func (p *OpenAIProvider) timeout() time.Duration {
	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return timeout
}
