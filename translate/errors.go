package translate

import (
	"errors"
	"fmt"
)

var (
	// ErrGeneration indicates the language model failed or returned unusable output.
	ErrGeneration = errors.New("generation failure")

	// ErrRetrieval indicates the retriever failed.
	ErrRetrieval = errors.New("retrieval failure")

	// ErrConfiguration indicates an unknown method or missing required input.
	ErrConfiguration = errors.New("configuration error")

	// ErrChainAborted indicates a decomposition step failed and the chain stopped.
	ErrChainAborted = errors.New("chain aborted")

	// ErrNoDocuments is returned when every retrieval for a query came back empty.
	ErrNoDocuments = errors.New("no documents retrieved")
)

// Stage names the part of a decomposition step that failed.
type Stage string

const (
	StageRetrieve Stage = "retrieve"
	StageAnswer   Stage = "answer"
)

// StepError reports the failure of sub-question Index.
// It matches ErrChainAborted and the underlying cause with errors.Is.
type StepError struct {
	Index int
	Stage Stage
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("chain aborted at sub-question %d (%s): %v", e.Index, e.Stage, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrChainAborted, e.Err}
}

// VariantError reports the failure of the retrieval for query variant Index.
// It matches ErrRetrieval and the underlying cause with errors.Is.
type VariantError struct {
	Index int
	Query string
	Err   error
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("retrieval failure for variant %d %q: %v", e.Index, e.Query, e.Err)
}

func (e *VariantError) Unwrap() []error {
	return []error{ErrRetrieval, e.Err}
}
