// Package index holds exact nearest-neighbour search over unit vectors.
package index

import (
	"context"
	"errors"
	"sort"
)

var (
	ErrDimensionMismatch = errors.New("index: vector dimension mismatch")
	ErrInvalidK          = errors.New("index: k must be positive")
	ErrEmptyIndex        = errors.New("index: no vectors to index")
)

// Match is one search result: a row of the indexed matrix and its inner
// product with the query.
type Match struct {
	Row   int
	Score float32
}

// Index is built once from an embedding matrix and then only queried.
// Search returns at most k matches, best first, each row at most once.
// Equal scores are ordered by row.
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]Match, error)
	Len() int
	Dimension() int
}

// Builder builds an Index from rows of equal dimension.
type Builder func(ctx context.Context, vectors [][]float32) (Index, error)

// Rank orders matches by descending score, ties by ascending row, and keeps
// the first k.
func Rank(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Row < matches[j].Row
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

// CheckMatrix returns the shared row length of vectors. Every row must have
// the same non-zero length.
func CheckMatrix(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, ErrEmptyIndex
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, ErrDimensionMismatch
	}
	for _, v := range vectors {
		if len(v) != dim {
			return 0, ErrDimensionMismatch
		}
	}
	return dim, nil
}

// CheckQuery validates a query against an index.
func CheckQuery(idx Index, query []float32, k int) error {
	if k <= 0 {
		return ErrInvalidK
	}
	if len(query) != idx.Dimension() {
		return ErrDimensionMismatch
	}
	return nil
}
