package index

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// five rows with known inner products against q = [0, 1]:
// 0 -> 0, 1 -> 1, 2 -> 0.8, 3 -> 0.6, 4 -> 0.8 (tie with row 2)
var handBuilt = [][]float32{
	{1, 0},
	{0, 1},
	{0.6, 0.8},
	{0.8, 0.6},
	{0.6, 0.8},
}

func rows(matches []Match) []int {
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.Row
	}
	return out
}

func TestFlat_Search(t *testing.T) {
	idx, err := BuildFlat(t.Context(), handBuilt)
	require.NoError(t, err)
	require.Equal(t, 5, idx.Len())
	require.Equal(t, 2, idx.Dimension())

	t.Run("ShouldReturnTopThreeWithTiesInInsertionOrder", func(t *testing.T) {
		matches, err := idx.Search(t.Context(), []float32{0, 1}, 3)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 4}, rows(matches))
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
		assert.InDelta(t, 0.8, matches[1].Score, 1e-6)
		assert.InDelta(t, 0.8, matches[2].Score, 1e-6)
	})

	t.Run("ShouldReturnAllRowsWhenKExceedsLen", func(t *testing.T) {
		matches, err := idx.Search(t.Context(), []float32{1, 0}, 50)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 3, 2, 4, 1}, rows(matches))
	})

	t.Run("ShouldRejectInvalidQueries", func(t *testing.T) {
		_, err := idx.Search(t.Context(), []float32{0, 1}, 0)
		require.ErrorIs(t, err, ErrInvalidK)
		_, err = idx.Search(t.Context(), []float32{0, 1, 0}, 3)
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("ShouldNotRepeatRows", func(t *testing.T) {
		matches, err := idx.Search(t.Context(), []float32{0.6, 0.8}, 5)
		require.NoError(t, err)
		seen := map[int]bool{}
		for _, m := range matches {
			assert.False(t, seen[m.Row])
			seen[m.Row] = true
		}
	})
}

func TestBuildFlat(t *testing.T) {
	t.Run("ShouldRejectEmptyMatrix", func(t *testing.T) {
		_, err := BuildFlat(t.Context(), nil)
		require.ErrorIs(t, err, ErrEmptyIndex)
	})

	t.Run("ShouldRejectRaggedMatrix", func(t *testing.T) {
		_, err := BuildFlat(t.Context(), [][]float32{{1, 0}, {1}})
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("ShouldCopyInput", func(t *testing.T) {
		vectors := [][]float32{{1, 0}, {0, 1}}
		idx, err := BuildFlat(t.Context(), vectors)
		require.NoError(t, err)
		vectors[0][0] = -1
		matches, err := idx.Search(t.Context(), []float32{1, 0}, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, matches[0].Row)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	})

	t.Run("ShouldDropNaNRows", func(t *testing.T) {
		nan := float32(math.NaN())
		idx, err := BuildFlat(t.Context(), [][]float32{{nan, 0}, {0, 1}})
		require.NoError(t, err)
		matches, err := idx.Search(t.Context(), []float32{1, 1}, 2)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, rows(matches))
	})
}
