package embedding

import (
	"context"
	"hash/fnv"
	"maps"
	"math"
	"regexp"
	"slices"
	"strings"
)

const defaultHashingDimension = 384

var (
	tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

	stopwords = func() map[string]struct{} {
		words := []string{
			"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
			"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
			"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
			"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
			"very", "can", "will", "just", "don", "should", "now", "what", "which", "who", "how", "do", "does",
		}
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			m[w] = struct{}{}
		}
		return m
	}()
)

// HashingEmbedder is a deterministic bag-of-words embedder that hashes tokens
// into a fixed number of buckets. It needs no model download or network and is
// used offline and in tests. It implements embeddings.Embedder.
type HashingEmbedder struct {
	dimension int
}

// NewHashingEmbedder returns an embedder producing vectors of the given size.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = defaultHashingDimension
	}
	return &HashingEmbedder{dimension: dimension}
}

// EmbedDocuments embeds every text independently.
func (h *HashingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (h *HashingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.embed(text), nil
}

func (h *HashingEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dimension)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		// text without words still needs a non-zero vector
		vec[0] = 1
		return vec
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	// float sums depend on order, so buckets are filled in token order
	for _, tok := range slices.Sorted(maps.Keys(counts)) {
		bucket, sign := h.bucket(tok)
		vec[bucket] += sign * float32(1+math.Log(float64(counts[tok])))
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sum); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	} else {
		vec[0] = 1
	}
	return vec
}

func (h *HashingEmbedder) bucket(token string) (int, float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(token))
	sum := hasher.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(h.dimension)), sign
}

// tokenize lowercases text and drops stopwords. When only stopwords remain the
// stopwords are kept so the text is still represented.
func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return raw
	}
	return out
}
