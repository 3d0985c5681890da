package embedding

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/cybertron"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"guideline-rag/internal/config"
)

// NewModel builds the langchaingo embedder selected by cfg.Provider.
func NewModel(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]any{
		"provider":  cfg.Provider,
		"base_url":  cfg.BaseURL,
		"model":     cfg.Model,
		"dimension": cfg.Dimension,
	}).Msg("Building embedding model")

	opts := []embeddings.Option{embeddings.WithBatchSize(max(cfg.BatchSize, 1))}
	switch cfg.Provider {
	case config.ProviderLocal:
		return newLocalEmbedder(cfg, opts...)
	case config.ProviderOpenAI:
		return newOpenAIEmbedder(cfg, opts...)
	case config.ProviderOllama:
		return newOllamaEmbedder(cfg, opts...)
	case config.ProviderHashing:
		return NewHashingEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("embedding: provider %q is not supported", cfg.Provider)
	}
}

// newLocalEmbedder runs a sentence-transformers model in process. The model is
// downloaded into cfg.ModelsDir on first use.
func newLocalEmbedder(cfg *config.LLMConfig, opts ...embeddings.Option) (embeddings.Embedder, error) {
	clientOpts := make([]cybertron.Option, 0, 2)
	if model := strings.TrimSpace(cfg.Model); model != "" {
		clientOpts = append(clientOpts, cybertron.WithModel(model))
	}
	if cfg.ModelsDir != "" {
		clientOpts = append(clientOpts, cybertron.WithModelsDir(cfg.ModelsDir))
	}
	client, err := cybertron.NewCybertron(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: init local model %q: %w", cfg.Model, err)
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: create local embedder: %w", err)
	}
	return embedder, nil
}

func newOpenAIEmbedder(cfg *config.LLMConfig, opts ...embeddings.Option) (embeddings.Embedder, error) {
	clientOpts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Key != "" {
		clientOpts = append(clientOpts, openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")))
	}
	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: init openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: create openai embedder: %w", err)
	}
	return embedder, nil
}

func newOllamaEmbedder(cfg *config.LLMConfig, opts ...embeddings.Option) (embeddings.Embedder, error) {
	clientOpts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: init ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: create ollama embedder: %w", err)
	}
	return embedder, nil
}
