package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"guideline-rag/internal/models"
)

const defaultBatchSize = 32

var errEmptyVector = errors.New("empty vector")

// Embedder turns chunks and queries into unit-length vectors. It wraps a
// langchaingo embedder and keeps output rows aligned with the input order.
// Safe for concurrent use once built.
type Embedder struct {
	impl      embeddings.Embedder
	model     string
	batchSize int
	cache     *lru.Cache[string, []float32]

	dimMu sync.RWMutex
	dim   int
}

// NewEmbedder wraps impl. A cacheSize of zero disables the query cache.
func NewEmbedder(impl embeddings.Embedder, model string, batchSize, cacheSize int) (*Embedder, error) {
	if impl == nil {
		return nil, fmt.Errorf("embedding: %q: implementation is required", model)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	e := &Embedder{impl: impl, model: model, batchSize: batchSize}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedding: %q: init cache: %w", model, err)
		}
		e.cache = cache
	}
	return e, nil
}

// Model returns the model identifier the embedder was built for.
func (e *Embedder) Model() string {
	return e.model
}

// Dimension returns the vector size, or 0 before the first call.
func (e *Embedder) Dimension() int {
	e.dimMu.RLock()
	defer e.dimMu.RUnlock()
	return e.dim
}

// EmbedChunks embeds texts in batches and returns one unit vector per text,
// in input order.
func (e *Embedder) EmbedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := e.impl.EmbedDocuments(ctx, batch)
		if err != nil {
			return nil, e.wrap(fmt.Errorf("batch [%d:%d]: %w", start, end, err))
		}
		if len(vectors) != len(batch) {
			return nil, e.wrap(fmt.Errorf("batch [%d:%d]: received %d vectors for %d texts", start, end, len(vectors), len(batch)))
		}
		for i, v := range vectors {
			unit, err := e.accept(v)
			if err != nil {
				return nil, e.wrap(fmt.Errorf("text %d: %w", start+i, err))
			}
			out = append(out, unit)
		}
		log.Debug().Str("model", e.model).Int("from", start).Int("to", end).Msg("Embedded batch")
	}
	return out, nil
}

// EmbedQuery embeds a single query. Repeated queries are served from the cache
// when one is configured.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return cloneVector(v), nil
		}
	}
	v, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, e.wrap(err)
	}
	unit, err := e.accept(v)
	if err != nil {
		return nil, e.wrap(err)
	}
	if e.cache != nil {
		e.cache.Add(key, cloneVector(unit))
	}
	return unit, nil
}

// accept normalises v and checks it against the dimension seen so far.
func (e *Embedder) accept(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, errEmptyVector
	}
	e.dimMu.Lock()
	switch {
	case e.dim == 0:
		e.dim = len(v)
	case e.dim != len(v):
		dim := e.dim
		e.dimMu.Unlock()
		return nil, fmt.Errorf("dimension %d, expected %d", len(v), dim)
	}
	e.dimMu.Unlock()
	return Normalize(v)
}

func (e *Embedder) wrap(err error) error {
	return fmt.Errorf("embedding: %q: %w: %w", e.model, models.ErrEmbeddingFailure, err)
}

// Normalize returns a copy of v scaled to unit L2 norm.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("vector norm %v cannot be normalised", norm)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
