package ingestion

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrFetchFailed is returned when a document cannot be downloaded.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNoContent is returned when a document yields no text to index.
	ErrNoContent = errors.New("no content to index")

	// ErrInvalidChunking is returned for a chunk size below one or an overlap
	// that is negative or not smaller than the chunk size.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrTokenizer is returned when a token encoding cannot be loaded.
	ErrTokenizer = errors.New("tokenizer unavailable")
)
