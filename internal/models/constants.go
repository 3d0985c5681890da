package models

const (
	DefaultChunkSize    = 700 // tokens
	DefaultChunkOverlap = 120 // tokens
	DefaultTopK         = 5
	MinTopK             = 3
	MaxTopK             = 10

	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultInferenceModel = "gpt-4o-mini"
	DefaultTemperature    = 0.2

	// characters of each chunk kept by the extractive answer
	ExtractCharLimit = 600
	ContextSeparator = "\n\n"
	AwaitingInput    = "Upload at least one PDF to begin."
)

var (
	SystemPrompt = "You are a helpful assistant answering questions based only on the provided context. Cite filenames and page numbers."

	UserPromptTemplate = `%s

Context:
%s

Question: %s
Answer succinctly with citations in brackets.`
)
