package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/observability"
)

// NewProvider creates a new LLM provider based on configuration. Every
// provider is wrapped so request durations reach the metrics registry.
func NewProvider(config Config, logger *zerolog.Logger) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	var (
		p   Provider
		err error
	)
	switch provider {
	case "openai", "openrouter":
		p, err = NewOpenAIProvider(config, logger)

	case "anthropic", "claude":
		p, err = NewAnthropicProvider(config, logger)

	case "ollama":
		p, err = NewOllamaProvider(config, logger)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: openai, openrouter, anthropic, ollama)", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &instrumented{Provider: p}, nil
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:    modelConfig.Provider,
		Model:       modelConfig.Model,
		APIKey:      modelConfig.APIKey,
		BaseURL:     modelConfig.BaseURL,
		Timeout:     modelConfig.Timeout,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		HTTPProxy:   modelConfig.HTTPProxy,
		HTTPSProxy:  modelConfig.HTTPSProxy,
		NoProxy:     modelConfig.NoProxy,
	}
}

type instrumented struct {
	Provider
}

func (i *instrumented) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	defer func() {
		observability.LLMRequestDuration.WithLabelValues(i.Name()).Observe(time.Since(start).Seconds())
	}()
	return i.Provider.Chat(ctx, req)
}

func (i *instrumented) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string)) (*ChatResponse, error) {
	start := time.Now()
	defer func() {
		observability.LLMRequestDuration.WithLabelValues(i.Name()).Observe(time.Since(start).Seconds())
	}()
	return i.Provider.ChatStream(ctx, req, onDelta)
}
