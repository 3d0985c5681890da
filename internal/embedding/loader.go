package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"guideline-rag/internal/config"
	"guideline-rag/internal/models"
)

// Factory builds an Embedder. It may be slow (model download or load).
type Factory func(ctx context.Context) (*Embedder, error)

// Loader builds the process-wide Embedder on first use and hands out the same
// instance afterwards. A failed load is not cached; the next Get tries again.
type Loader struct {
	mu       sync.Mutex
	factory  Factory
	embedder *Embedder
}

// NewLoader returns a Loader around factory.
func NewLoader(factory Factory) *Loader {
	return &Loader{factory: factory}
}

// NewConfigLoader returns a Loader building the backend named by cfg.
func NewConfigLoader(cfg *config.LLMConfig) *Loader {
	return NewLoader(func(ctx context.Context) (*Embedder, error) {
		impl, err := NewModel(cfg)
		if err != nil {
			return nil, err
		}
		name := cfg.Model
		if name == "" {
			name = cfg.Provider
		}
		return NewEmbedder(impl, name, cfg.BatchSize, cfg.CacheSize)
	})
}

// Get returns the loaded Embedder, loading it if needed. Concurrent callers
// wait for the one load in progress.
func (l *Loader) Get(ctx context.Context) (*Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.embedder != nil {
		return l.embedder, nil
	}

	start := time.Now()
	log.Info().Msg("Loading embedding model")
	emb, err := l.factory(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error loading embedding model")
		return nil, fmt.Errorf("embedding: load model: %w: %w", models.ErrEmbeddingFailure, err)
	}
	log.Info().Str("model", emb.Model()).Dur("took", time.Since(start)).Msg("Embedding model loaded")
	l.embedder = emb
	return emb, nil
}

// Loaded reports whether a model has been loaded.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.embedder != nil
}
