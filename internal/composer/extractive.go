package composer

import (
	"context"
	"fmt"
	"strings"

	"guideline-rag/internal/models"
)

// Extractive quotes the start of every hit, tagged with its file and page.
type Extractive struct{}

func (Extractive) Compose(_ context.Context, _ string, hits []models.RetrievalHit) Result {
	return Result{Text: Extract(hits)}
}

// Extract renders "[file p.N] text" per hit, keeping at most
// models.ExtractCharLimit characters of each chunk, separated by blank lines.
func Extract(hits []models.RetrievalHit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("%s %s", tag(h.Meta), truncate(h.Content, models.ExtractCharLimit))
	}
	return strings.Join(parts, models.ContextSeparator)
}

func tag(meta models.ChunkMeta) string {
	return fmt.Sprintf("[%s p.%d]", meta.SourceFilename, meta.PageNumber)
}

// truncate cuts s to n runes.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
