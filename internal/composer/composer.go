// Package composer turns ranked passages into the answer shown to the user.
package composer

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"guideline-rag/internal/config"
	"guideline-rag/internal/models"
)

// Result is a composed answer.
type Result struct {
	Text string
	// Synthesized is set when a language model wrote the answer.
	Synthesized bool
	// FellBack is set when the language model failed and the extractive
	// answer was used instead.
	FellBack bool
}

// Composer builds an answer from the hits of one query, best hit first.
// Compose never fails; an implementation that cannot answer degrades to the
// extractive answer.
type Composer interface {
	Compose(ctx context.Context, query string, hits []models.RetrievalHit) Result
}

// New returns the LLM composer when cfg enables it and chat is available,
// the extractive composer otherwise.
func New(cfg *config.Config, chat llms.Model) Composer {
	if cfg != nil && cfg.LLMEnabled && chat != nil {
		log.Info().Str("model", cfg.InferenceLLM.Model).Msg("Answers are synthesized by the language model")
		return NewLLM(chat, cfg.InferenceLLM)
	}
	log.Info().Msg("No language model configured, answers are extractive")
	return Extractive{}
}
