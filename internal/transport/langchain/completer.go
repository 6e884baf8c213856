// Package langchain adapts langchaingo chat models to domain.Completer.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
)

// Config holds the langchaingo completer settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// Completer runs completions through a langchaingo llms.Model.
type Completer struct {
	llm    llms.Model
	model  string
	logger *zap.Logger
}

// NewCompleter builds a completer over langchaingo's OpenAI-compatible client.
// Local endpoints without auth get the placeholder token "none".
func NewCompleter(cfg *Config) (*Completer, error) {
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}
	return NewCompleterWithModel(llm, cfg.Model, cfg.Logger), nil
}

// NewCompleterWithModel wraps an existing llms.Model.
func NewCompleterWithModel(llm llms.Model, model string, logger *zap.Logger) *Completer {
	return &Completer{llm: llm, model: model, logger: logger}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	if req.CachedContext != "" {
		return domain.CompletionResult{}, fmt.Errorf("cached context handle: %w", domain.ErrContextCacheUnavailable)
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(req.User)},
		},
	}

	opts := []llms.CallOption{llms.WithTemperature(float64(req.Temperature))}
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		c.logger.Warn("Chat completion failed", zap.String("model", c.model), zap.Error(err))
		return domain.CompletionResult{}, fmt.Errorf("generate content: %w: %w", err, domain.ErrCompletionProviderError)
	}
	if len(resp.Choices) == 0 {
		return domain.CompletionResult{}, fmt.Errorf("completion returned no choices: %w", domain.ErrCompletionProviderError)
	}

	choice := resp.Choices[0]
	return domain.CompletionResult{
		Text:             choice.Content,
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

// intInfo reads a token counter from the provider-specific generation info.
func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
