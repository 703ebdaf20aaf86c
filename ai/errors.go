package ai

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmptyCompletion is returned when a model produced no text.
	ErrEmptyCompletion = errors.New("model returned an empty completion")

	// ErrEmbeddingMismatch is returned when a batch embedding call returns
	// a different number of vectors than texts submitted.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
