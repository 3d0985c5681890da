package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"guideline-rag/internal/composer"
	"guideline-rag/internal/embedding"
	"guideline-rag/internal/index"
	"guideline-rag/internal/metrics"
	"guideline-rag/internal/models"
)

// State is the lifecycle stage of a Session.
type State int

const (
	StateEmpty State = iota
	StateCorpusBuilt
	StateIndexed
)

func (s State) String() string {
	switch s {
	case StateCorpusBuilt:
		return "corpus_built"
	case StateIndexed:
		return "ready"
	default:
		return "empty"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status describes a Session for display.
type Status struct {
	State         State    `json:"state"`
	AwaitingInput bool     `json:"awaiting_input"`
	Message       string   `json:"message,omitempty"`
	Chunks        int      `json:"chunks"`
	Documents     []string `json:"documents"`
	Skipped       []string `json:"skipped,omitempty"`
}

// Options configures a Session. Zero values pick the defaults: 700/120
// chunking, the flat index and the extractive composer.
type Options struct {
	Chunk    ChunkOptions
	Builder  index.Builder
	Composer composer.Composer
	Metrics  *metrics.Metrics
}

// Session owns the corpus and index of one user. Load replaces both; Ask
// queries them. Calls are serialised, so a query never sees a half built index.
type Session struct {
	mu     sync.Mutex
	loader *embedding.Loader
	opts   Options

	state   State
	corpus  *models.Corpus
	indexed *Indexed
	emb     *embedding.Embedder
	skipped []string
}

// NewSession returns an empty session. loader is shared between sessions so
// the embedding model is loaded once per process.
func NewSession(loader *embedding.Loader, opts Options) *Session {
	if opts.Chunk == (ChunkOptions{}) {
		opts.Chunk = DefaultChunkOptions()
	}
	if opts.Builder == nil {
		opts.Builder = index.BuildFlat
	}
	if opts.Composer == nil {
		opts.Composer = composer.Extractive{}
	}
	return &Session{loader: loader, opts: opts}
}

// Load discards the current corpus and builds a new one from sources. With no
// sources the session stays empty and nothing is extracted or embedded. On
// ErrEmptyCorpus or an embedding failure the session is left empty.
func (s *Session) Load(ctx context.Context, sources []models.Source) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	if len(sources) == 0 {
		log.Info().Msg(models.AwaitingInput)
		return s.status(), nil
	}

	corpus, err := BuildCorpus(ctx, sources, s.opts.Chunk)
	if corpus != nil {
		s.skipped = corpus.Skipped
	}
	if err != nil {
		result := metrics.BuildError
		if errors.Is(err, models.ErrEmptyCorpus) {
			result = metrics.BuildEmptyCorpus
			log.Warn().Strs("skipped", s.skipped).Msg("No extractable text found in the uploaded documents")
		}
		s.opts.Metrics.ObserveBuild(result, 0, len(s.skipped))
		return s.status(), err
	}
	s.corpus = corpus
	s.state = StateCorpusBuilt

	emb, err := s.loader.Get(ctx)
	if err == nil {
		s.indexed, err = IndexCorpus(ctx, emb, s.opts.Builder, corpus.Chunks)
	}
	if err != nil {
		result := metrics.BuildError
		if errors.Is(err, models.ErrEmbeddingFailure) {
			result = metrics.BuildEmbeddingFailure
		}
		log.Error().Err(err).Msg("Error indexing corpus")
		s.opts.Metrics.ObserveBuild(result, 0, len(s.skipped))
		skipped := s.skipped
		s.reset()
		s.skipped = skipped
		return s.status(), err
	}

	s.emb = emb
	s.state = StateIndexed
	s.opts.Metrics.ObserveBuild(metrics.BuildOK, corpus.Len(), len(s.skipped))
	return s.status(), nil
}

// Ask answers query from the k most similar chunks. k must be within
// models.MinTopK and models.MaxTopK.
func (s *Session) Ask(ctx context.Context, query string, k int) (models.Answer, error) {
	if k < models.MinTopK || k > models.MaxTopK {
		return models.Answer{}, fmt.Errorf("rag: %w: %d not in [%d, %d]", models.ErrInvalidTopK, k, models.MinTopK, models.MaxTopK)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Answer{}, fmt.Errorf("rag: %w", models.ErrEmptyQuery)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIndexed {
		return models.Answer{}, fmt.Errorf("rag: %w", models.ErrNotReady)
	}

	start := time.Now()
	hits, err := Retrieve(ctx, query, s.emb, s.indexed.Index, s.corpus, k)
	if err != nil {
		return models.Answer{}, err
	}
	res := s.opts.Composer.Compose(ctx, query, hits)
	latency := time.Since(start)

	s.opts.Metrics.ObserveQuery(latency, res.FellBack)
	log.Info().Str("query", query).Int("hits", len(hits)).Dur("latency", latency).Bool("synthesized", res.Synthesized).Msg("Answered query")
	return models.Answer{
		Query:       query,
		Text:        res.Text,
		Latency:     latency,
		Hits:        hits,
		Synthesized: res.Synthesized,
	}, nil
}

// Status reports the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

// Corpus returns the current corpus, nil before a successful Load.
func (s *Session) Corpus() *models.Corpus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus
}

func (s *Session) reset() {
	s.state = StateEmpty
	s.corpus = nil
	s.indexed = nil
	s.emb = nil
	s.skipped = nil
}

func (s *Session) status() Status {
	st := Status{
		State:     s.state,
		Chunks:    s.corpus.Len(),
		Documents: s.corpus.Documents(),
		Skipped:   s.skipped,
	}
	if st.Documents == nil {
		st.Documents = []string{}
	}
	if s.state == StateEmpty {
		st.AwaitingInput = true
		st.Message = models.AwaitingInput
	}
	return st
}
