package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragquery/ai"
	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/retrieval"
)

// SequentialSolver answers an ordered chain of sub-questions one at a time.
// Each step retrieves for its sub-question and answers it with every earlier
// (question, answer) pair as background; the final answer is synthesized from
// the whole chain.
type SequentialSolver struct {
	retriever retrieval.Retriever
	generator ai.Generator
	logger    *slog.Logger
}

// NewSequentialSolver creates a solver using retriever for context and
// generator for step answers and the final synthesis.
func NewSequentialSolver(retriever retrieval.Retriever, generator ai.Generator) (*SequentialSolver, error) {
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", ErrConfiguration)
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: generator is required", ErrConfiguration)
	}
	return &SequentialSolver{
		retriever: retriever,
		generator: generator,
		logger:    slog.Default().With("component", "solver"),
	}, nil
}

// Solve runs the chain for subQuestions in the given order and returns the
// synthesized answer together with the solved chain.
//
// Step i starts only after step i-1 has been appended to the chain, and sees
// exactly the pairs for steps 0..i-1. A failed step stops the chain with a
// *StepError naming its index; later steps are not attempted and no answer is
// returned.
func (s *SequentialSolver) Solve(ctx context.Context, query string, subQuestions []string) (string, []core.QAPair, error) {
	if len(subQuestions) == 0 {
		return "", nil, fmt.Errorf("%w: at least one sub-question is required", ErrConfiguration)
	}

	monitor := monitorFrom(ctx)
	chain := make([]core.QAPair, 0, len(subQuestions))

	for i, question := range subQuestions {
		monitor.StepStarted(i, question, chain[:len(chain):len(chain)])

		pair, err := s.step(ctx, i, question, chain)
		if err != nil {
			s.logger.Error("sub-question failed", "index", i, "err", err)
			return "", nil, err
		}

		chain = append(chain, pair)
		monitor.StepSolved(i, pair)
	}

	prompt, err := render(synthesisPrompt, map[string]any{
		"context":  formatChain(chain),
		"question": query,
	})
	if err != nil {
		return "", nil, err
	}

	answer, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("%w: synthesizing final answer: %w", ErrGeneration, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", nil, fmt.Errorf("%w: synthesizing final answer: empty response", ErrGeneration)
	}

	return answer, chain, nil
}

// step solves sub-question index against the pairs solved so far.
func (s *SequentialSolver) step(ctx context.Context, index int, question string, prior []core.QAPair) (core.QAPair, error) {
	if err := ctx.Err(); err != nil {
		return core.QAPair{}, &StepError{Index: index, Stage: StageRetrieve, Err: fmt.Errorf("%w: %w", ErrRetrieval, err)}
	}

	docs, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return core.QAPair{}, &StepError{Index: index, Stage: StageRetrieve, Err: fmt.Errorf("%w: %w", ErrRetrieval, err)}
	}
	monitorFrom(ctx).Retrieved(core.Query{Index: index, Text: question}, docs)

	prompt, err := render(stepPrompt, map[string]any{
		"question": question,
		"qa_pairs": formatBackground(prior),
		"context":  formatDocuments(docs),
	})
	if err != nil {
		return core.QAPair{}, &StepError{Index: index, Stage: StageAnswer, Err: err}
	}

	answer, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return core.QAPair{}, &StepError{Index: index, Stage: StageAnswer, Err: fmt.Errorf("%w: %w", ErrGeneration, err)}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return core.QAPair{}, &StepError{Index: index, Stage: StageAnswer, Err: fmt.Errorf("%w: empty answer", ErrGeneration)}
	}

	s.logger.Debug("sub-question solved", "index", index, "docs", len(docs))
	return core.QAPair{Question: question, Answer: answer}, nil
}
