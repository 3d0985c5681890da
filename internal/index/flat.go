package index

import (
	"context"
	"math"
)

// Flat is a brute-force inner product index over a contiguous row-major matrix.
type Flat struct {
	dim  int
	rows int
	data []float32
}

var _ Index = (*Flat)(nil)

// BuildFlat copies vectors into a new Flat index.
func BuildFlat(_ context.Context, vectors [][]float32) (Index, error) {
	f, err := NewFlat(vectors)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewFlat is BuildFlat returning the concrete type.
func NewFlat(vectors [][]float32) (*Flat, error) {
	dim, err := CheckMatrix(vectors)
	if err != nil {
		return nil, err
	}
	data := make([]float32, 0, dim*len(vectors))
	for _, v := range vectors {
		data = append(data, v...)
	}
	return &Flat{dim: dim, rows: len(vectors), data: data}, nil
}

func (f *Flat) Len() int       { return f.rows }
func (f *Flat) Dimension() int { return f.dim }

// Search scores every row. Rows whose score is NaN are left out.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if err := CheckQuery(f, query, k); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, f.rows)
	for row := 0; row < f.rows; row++ {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score := dot(query, f.data[row*f.dim:(row+1)*f.dim])
		if math.IsNaN(float64(score)) {
			continue
		}
		matches = append(matches, Match{Row: row, Score: score})
	}
	return Rank(matches, k), nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
