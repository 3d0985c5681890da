package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"guideline-rag/internal/config"
)

var ErrEmptyResponse = errors.New("llmservice: empty response")

// NewChatModel builds the chat model described by cfg. The key is expected to
// be resolved already.
func NewChatModel(cfg *config.LLMConfig) (llms.Model, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Building chat model")

	switch cfg.Provider {
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llmservice: init ollama client: %w", err)
		}
		return llm, nil
	case config.ProviderOpenAI, "":
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llmservice: init openai client: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("llmservice: provider %q is not supported", cfg.Provider)
	}
}

// GenerateContent sends messages to llm with the model and temperature from
// cfg and returns the text of the first choice.
func GenerateContent(ctx context.Context, llm llms.Model, cfg *config.LLMConfig, messages []llms.MessageContent) (string, error) {
	log.Debug().Str("model", cfg.Model).Int("messages", len(messages)).Msg("Generating content")
	res, err := llm.GenerateContent(ctx, messages,
		llms.WithModel(cfg.Model),
		llms.WithTemperature(cfg.Temperature),
	)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(res.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
