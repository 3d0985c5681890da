package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"guideline-rag/internal/config"
)

type stubModel struct {
	res *llms.ContentResponse
	err error
}

func (s stubModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return s.res, s.err
}

func (s stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestGenerateContent(t *testing.T) {
	cfg := &config.LLMConfig{Model: "gpt-4o-mini", Temperature: 0.2}
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "hi")}

	t.Run("ShouldReturnFirstChoice", func(t *testing.T) {
		m := stubModel{res: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: " blue \n"}, {Content: "red"}}}}
		text, err := GenerateContent(t.Context(), m, cfg, msgs)
		require.NoError(t, err)
		assert.Equal(t, "blue", text)
	})

	t.Run("ShouldRejectEmptyResponses", func(t *testing.T) {
		for _, res := range []*llms.ContentResponse{nil, {}, {Choices: []*llms.ContentChoice{{Content: "  "}}}} {
			_, err := GenerateContent(t.Context(), stubModel{res: res}, cfg, msgs)
			require.ErrorIs(t, err, ErrEmptyResponse)
		}
	})

	t.Run("ShouldPassThroughErrors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := GenerateContent(t.Context(), stubModel{err: boom}, cfg, msgs)
		require.ErrorIs(t, err, boom)
	})
}

func TestNewChatModel(t *testing.T) {
	t.Run("ShouldBuildOpenAIClient", func(t *testing.T) {
		m, err := NewChatModel(&config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", Key: "Bearer sk-test"})
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("ShouldRejectUnknownProvider", func(t *testing.T) {
		_, err := NewChatModel(&config.LLMConfig{Provider: "bedrock"})
		require.Error(t, err)
	})
}
