package models

import (
	"fmt"
	"time"
)

// Source is one uploaded file as received from the caller.
type Source struct {
	Name string
	Data []byte
}

// Page is the raw text of one page, numbered from 1.
type Page struct {
	Document string
	Number   int
	Text     string
}

// ChunkMeta records where a chunk came from
type ChunkMeta struct {
	SourceFilename string `json:"filename"`
	PageNumber     int    `json:"page"`
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content        string
	SourceFilename string
	PageNumber     int
	ChunkID        int
}

// Meta returns the citation metadata of the chunk.
func (c Chunk) Meta() ChunkMeta {
	return ChunkMeta{SourceFilename: c.SourceFilename, PageNumber: c.PageNumber}
}

// Corpus holds every chunk of one upload batch. Chunks and Meta are parallel:
// Meta[i] describes Chunks[i].
type Corpus struct {
	Chunks  []string
	Meta    []ChunkMeta
	Skipped []string
}

// Len returns the number of chunks in the corpus.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Chunks)
}

// Append adds a chunk and its metadata at the same position.
func (c *Corpus) Append(chunk Chunk) {
	c.Chunks = append(c.Chunks, chunk.Content)
	c.Meta = append(c.Meta, chunk.Meta())
}

// Documents returns the distinct source filenames in corpus order.
func (c *Corpus) Documents() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	for _, m := range c.Meta {
		if _, ok := seen[m.SourceFilename]; ok {
			continue
		}
		seen[m.SourceFilename] = struct{}{}
		names = append(names, m.SourceFilename)
	}
	return names
}

// RetrievalHit is one ranked passage returned for a query.
type RetrievalHit struct {
	Score   float32   `json:"score"`
	Content string    `json:"content"`
	Meta    ChunkMeta `json:"meta"`
}

// Citation renders the hit as "file, p.N (similarity=0.123)".
func (h RetrievalHit) Citation() string {
	return fmt.Sprintf("%s, p.%d (similarity=%.3f)", h.Meta.SourceFilename, h.Meta.PageNumber, h.Score)
}

// Answer is the response to one query.
type Answer struct {
	Query       string
	Text        string
	Latency     time.Duration
	Hits        []RetrievalHit
	Synthesized bool
}

// LatencyMillis returns the latency rounded to whole milliseconds.
func (a Answer) LatencyMillis() int64 {
	return a.Latency.Round(time.Millisecond).Milliseconds()
}

// Citations renders every hit in ranked order.
func (a Answer) Citations() []string {
	out := make([]string, len(a.Hits))
	for i, h := range a.Hits {
		out[i] = h.Citation()
	}
	return out
}
