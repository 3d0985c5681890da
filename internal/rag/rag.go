package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"guideline-rag/internal/chromemdb"
	"guideline-rag/internal/config"
	"guideline-rag/internal/index"
	"guideline-rag/internal/models"
	"guideline-rag/internal/parser"
)

// ChunkOptions sets the token window used when chunking pages.
type ChunkOptions struct {
	Size    int
	Overlap int
}

// DefaultChunkOptions returns 700 token windows overlapping by 120.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Size: models.DefaultChunkSize, Overlap: models.DefaultChunkOverlap}
}

// ChunkEmbedder embeds corpus chunks.
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryEmbedder embeds a query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Indexed is the searchable form of a corpus.
type Indexed struct {
	Vectors [][]float32
	Index   index.Index
}

// IndexBuilder returns the index builder for the configured backend.
func IndexBuilder(cfg config.RAGConfig) index.Builder {
	if cfg.IndexBackend == config.IndexBackendChromem {
		return chromemdb.BuildIndex
	}
	return index.BuildFlat
}

// BuildCorpus extracts and chunks every source in order. Documents that cannot
// be opened are logged and listed in Corpus.Skipped; blank pages add nothing.
// When no chunk survives, the partial corpus is returned with ErrEmptyCorpus.
func BuildCorpus(ctx context.Context, sources []models.Source, opts ChunkOptions) (*models.Corpus, error) {
	if opts.Size <= 0 || opts.Overlap < 0 || opts.Overlap >= opts.Size {
		return nil, fmt.Errorf("rag: %w: size %d overlap %d", models.ErrInvalidWindow, opts.Size, opts.Overlap)
	}

	corpus := &models.Corpus{}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := parser.Extract(src)
		if err != nil {
			log.Warn().Err(err).Str("file", src.Name).Msg("Skipping unreadable document")
			corpus.Skipped = append(corpus.Skipped, src.Name)
			continue
		}

		before := corpus.Len()
		for _, page := range pages {
			if strings.TrimSpace(page.Text) == "" {
				continue
			}
			chunks, err := parser.ChunkPage(page, opts.Size, opts.Overlap)
			if err != nil {
				return nil, err
			}
			for _, c := range chunks {
				corpus.Append(c)
			}
		}
		log.Debug().Str("file", src.Name).Int("pages", len(pages)).Int("chunks", corpus.Len()-before).Msg("Chunked document")
	}

	if corpus.Len() == 0 {
		return corpus, fmt.Errorf("rag: %w", models.ErrEmptyCorpus)
	}
	log.Info().Msgf("Built corpus of %d chunks from %d documents", corpus.Len(), len(sources)-len(corpus.Skipped))
	return corpus, nil
}

// IndexCorpus embeds every chunk once and builds the index once.
func IndexCorpus(ctx context.Context, emb ChunkEmbedder, build index.Builder, chunks []string) (*Indexed, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("rag: %w", models.ErrEmptyCorpus)
	}
	vectors, err := emb.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("rag: %w: %d vectors for %d chunks", models.ErrEmbeddingFailure, len(vectors), len(chunks))
	}
	idx, err := build(ctx, vectors)
	if err != nil {
		return nil, fmt.Errorf("rag: build index: %w", err)
	}
	log.Info().Int("chunks", idx.Len()).Int("dimension", idx.Dimension()).Msg("Indexed corpus")
	return &Indexed{Vectors: vectors, Index: idx}, nil
}

// Retrieve returns up to k hits for query in index order. Rows the corpus
// does not hold and repeated rows are skipped.
func Retrieve(ctx context.Context, query string, emb QueryEmbedder, idx index.Index, corpus *models.Corpus, k int) ([]models.RetrievalHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rag: %w: %d", models.ErrInvalidTopK, k)
	}
	n := corpus.Len()
	if n == 0 {
		return nil, nil
	}
	k = min(k, n)

	q, err := emb.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := idx.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}

	hits := make([]models.RetrievalHit, 0, len(matches))
	seen := make(map[int]struct{}, len(matches))
	for _, m := range matches {
		if m.Row < 0 || m.Row >= n {
			continue
		}
		if _, dup := seen[m.Row]; dup {
			continue
		}
		seen[m.Row] = struct{}{}
		hits = append(hits, models.RetrievalHit{
			Score:   m.Score,
			Content: corpus.Chunks[m.Row],
			Meta:    corpus.Meta[m.Row],
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}
