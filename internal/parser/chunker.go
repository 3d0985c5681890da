package parser

import (
	"fmt"
	"strings"

	"guideline-rag/internal/models"
)

// ChunkText splits text into windows of whitespace-delimited tokens. Chunk i
// covers tokens [i*(window-overlap), i*(window-overlap)+window), clipped to the
// token count, for every start below the token count. Tokens are rejoined
// with single spaces and windows ignore sentence boundaries. A text of at most
// window tokens is a single chunk.
func ChunkText(text string, window, overlap int) ([]string, error) {
	if window <= 0 {
		return nil, fmt.Errorf("parser: %w: window %d must be positive", models.ErrInvalidWindow, window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("parser: %w: overlap %d must be in [0, %d)", models.ErrInvalidWindow, overlap, window)
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	if len(tokens) <= window {
		return []string{strings.Join(tokens, " ")}, nil
	}

	stride := window - overlap
	chunks := make([]string, 0, (len(tokens)+stride-1)/stride)
	for start := 0; start < len(tokens); start += stride {
		end := min(start+window, len(tokens))
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
	}
	return chunks, nil
}

// ChunkPage chunks one page and tags each chunk with its file and page.
func ChunkPage(page models.Page, window, overlap int) ([]models.Chunk, error) {
	texts, err := ChunkText(page.Text, window, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			Content:        text,
			SourceFilename: page.Document,
			PageNumber:     page.Number,
			ChunkID:        i + 1,
		}
	}
	return chunks, nil
}
