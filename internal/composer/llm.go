package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"guideline-rag/internal/config"
	"guideline-rag/internal/llmservice"
	"guideline-rag/internal/models"
)

// LLM asks a chat model to answer from the retrieved context.
type LLM struct {
	chat llms.Model
	cfg  config.LLMConfig
}

func NewLLM(chat llms.Model, cfg config.LLMConfig) *LLM {
	return &LLM{chat: chat, cfg: cfg}
}

// Compose returns the model's answer, or the extractive answer if the call
// fails or comes back empty.
func (l *LLM) Compose(ctx context.Context, query string, hits []models.RetrievalHit) Result {
	text, err := llmservice.GenerateContent(ctx, l.chat, &l.cfg, Messages(query, hits))
	if err != nil {
		err = fmt.Errorf("composer: %w: %w", models.ErrComposerFailure, err)
		log.Warn().Err(err).Str("model", l.cfg.Model).Msg("Language model failed, using extractive answer")
		return Result{Text: Extract(hits), FellBack: true}
	}
	return Result{Text: text, Synthesized: true}
}

// Messages builds the system and user turns sent to the model.
func Messages(query string, hits []models.RetrievalHit) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, Prompt(query, hits)),
	}
}

// Prompt renders the user turn: instruction, tagged context, question.
func Prompt(query string, hits []models.RetrievalHit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("%s %s", tag(h.Meta), h.Content)
	}
	return fmt.Sprintf(models.UserPromptTemplate, models.SystemPrompt, strings.Join(blocks, models.ContextSeparator), query)
}
