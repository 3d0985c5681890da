package models

import "errors"

var (
	// ErrDocumentUnreadable means a whole document could not be opened.
	ErrDocumentUnreadable = errors.New("document unreadable")
	// ErrPageExtractionFailed is logged per page; the page is treated as empty.
	ErrPageExtractionFailed = errors.New("page extraction failed")
	// ErrEmptyCorpus means no chunk survived extraction and chunking.
	ErrEmptyCorpus = errors.New("no extractable text found")
	// ErrEmbeddingFailure means the embedding backend is unavailable or failed.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrComposerFailure is recovered by the composer and never returned to callers.
	ErrComposerFailure = errors.New("composer failure")
	ErrInvalidWindow   = errors.New("invalid chunk window")
	ErrInvalidTopK     = errors.New("invalid top k")
	ErrNotReady        = errors.New("no indexed documents")
	ErrEmptyQuery      = errors.New("empty query")
)
