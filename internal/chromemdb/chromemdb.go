// Package chromemdb serves the index.Index contract from an in-memory
// chromem-go collection.
package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"guideline-rag/internal/index"
)

const collectionName = "chunks"

var errNoEmbedding = errors.New("chromemdb: documents must carry their embedding")

// Index keeps one chromem collection whose document IDs are matrix rows.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	dim        int
	rows       int
}

var _ index.Index = (*Index)(nil)

// BuildIndex loads vectors into a fresh in-memory collection.
func BuildIndex(ctx context.Context, vectors [][]float32) (index.Index, error) {
	idx, err := NewIndex(ctx, vectors)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// NewIndex is BuildIndex returning the concrete type.
func NewIndex(ctx context.Context, vectors [][]float32) (*Index, error) {
	dim, err := index.CheckMatrix(vectors)
	if err != nil {
		return nil, err
	}

	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbedding
	})
	if err != nil {
		return nil, fmt.Errorf("chromemdb: create collection: %w", err)
	}

	docs := make([]chromem.Document, len(vectors))
	for row, v := range vectors {
		id := strconv.Itoa(row)
		docs[row] = chromem.Document{
			ID:        id,
			Metadata:  map[string]string{"row": id},
			Embedding: v,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("chromemdb: add documents: %w", err)
	}
	log.Debug().Int("rows", len(vectors)).Int("dimension", dim).Msg("Built chromem index")

	return &Index{db: db, collection: c, dim: dim, rows: len(vectors)}, nil
}

func (i *Index) Len() int       { return i.rows }
func (i *Index) Dimension() int { return i.dim }

// Search asks chromem for every row and re-ranks the result, since chromem
// leaves the order of equal similarities unspecified.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]index.Match, error) {
	if err := index.CheckQuery(i, query, k); err != nil {
		return nil, err
	}
	results, err := i.collection.QueryEmbedding(ctx, query, i.collection.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromemdb: query: %w", err)
	}

	seen := make(map[int]struct{}, len(results))
	matches := make([]index.Match, 0, len(results))
	for _, r := range results {
		row, err := strconv.Atoi(r.ID)
		if err != nil || row < 0 || row >= i.rows {
			log.Warn().Str("id", r.ID).Msg("Dropping result with unknown row")
			continue
		}
		if _, dup := seen[row]; dup {
			continue
		}
		if math.IsNaN(float64(r.Similarity)) {
			continue
		}
		seen[row] = struct{}{}
		matches = append(matches, index.Match{Row: row, Score: r.Similarity})
	}
	return index.Rank(matches, k), nil
}
