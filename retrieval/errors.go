package retrieval

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidTopK is returned when top-k is less than one.
	ErrInvalidTopK = errors.New("top-k must be at least 1")

	// ErrEmptyQuery is returned when Retrieve is called with a blank query.
	ErrEmptyQuery = errors.New("query is empty")
)
