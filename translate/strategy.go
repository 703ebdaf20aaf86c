package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragquery/ai"
	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/retrieval"
)

// Strategy answers a query with one query-translation method.
type Strategy interface {
	Answer(ctx context.Context, query string) (string, error)
}

// pipeline holds the collaborators shared by the strategies.
type pipeline struct {
	retriever retrieval.Retriever
	generator ai.Generator
	pool      *ants.Pool
	logger    *slog.Logger
}

// retrieveAll runs one retrieval per query on the worker pool and waits for all of them.
// The first failure cancels the remaining retrievals and is returned as a
// *VariantError; no partial results are returned.
func (p *pipeline) retrieveAll(ctx context.Context, queries []string) ([]core.RankedList, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lists := make([]core.RankedList, len(queries))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(index int, err error) {
		once.Do(func() {
			firstErr = &VariantError{Index: index, Query: queries[index], Err: err}
			cancel()
		})
	}

	for i, query := range queries {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				fail(i, err)
				return
			}
			docs, err := p.retriever.Retrieve(ctx, query)
			if err != nil {
				fail(i, err)
				return
			}
			lists[i] = docs
		})
		if err != nil {
			wg.Done()
			fail(i, err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		p.logger.Error("retrieval failed", "err", firstErr)
		return nil, firstErr
	}

	monitor := monitorFrom(ctx)
	for i, list := range lists {
		monitor.Retrieved(core.Query{Index: i, Text: queries[i]}, list)
	}
	return lists, nil
}

// answer generates the final answer from docs.
func (p *pipeline) answer(ctx context.Context, query string, docs []core.DocumentRef) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("%w: %w", ErrRetrieval, ErrNoDocuments)
	}

	prompt, err := render(answerPrompt, map[string]any{
		"context":  formatDocuments(docs),
		"question": query,
	})
	if err != nil {
		return "", err
	}

	text, err := p.generator.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: answering: %w", ErrGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: answering: empty response", ErrGeneration)
	}
	return text, nil
}

// MultiQuery answers from the unique union of fragments retrieved for several
// rephrasings of the query.
type MultiQuery struct {
	pipeline  *pipeline
	generator *QueryGenerator
	count     int
}

var _ Strategy = (*MultiQuery)(nil)

// Answer implements Strategy.
func (m *MultiQuery) Answer(ctx context.Context, query string) (string, error) {
	variants, err := m.generator.Generate(ctx, query, m.count)
	if err != nil {
		return "", err
	}
	monitorFrom(ctx).QueriesGenerated(toQueries(variants))

	lists, err := m.pipeline.retrieveAll(ctx, variants)
	if err != nil {
		return "", err
	}

	return m.pipeline.answer(ctx, query, uniqueUnion(lists))
}

// uniqueUnion returns each distinct fragment once, in first-seen order.
func uniqueUnion(lists []core.RankedList) []core.DocumentRef {
	seen := make(map[string]struct{})
	var docs []core.DocumentRef
	for _, list := range lists {
		for _, doc := range list {
			if _, ok := seen[doc.Content]; ok {
				continue
			}
			seen[doc.Content] = struct{}{}
			docs = append(docs, doc)
		}
	}
	return docs
}

// Fusion answers from the Reciprocal Rank Fusion of the lists retrieved for
// several generated search queries.
type Fusion struct {
	pipeline  *pipeline
	generator *QueryGenerator
	count     int
	k         float64
	identity  Identity
}

var _ Strategy = (*Fusion)(nil)

// Answer implements Strategy.
func (f *Fusion) Answer(ctx context.Context, query string) (string, error) {
	variants, err := f.generator.Generate(ctx, query, f.count)
	if err != nil {
		return "", err
	}
	monitor := monitorFrom(ctx)
	monitor.QueriesGenerated(toQueries(variants))

	lists, err := f.pipeline.retrieveAll(ctx, variants)
	if err != nil {
		return "", err
	}

	fused, err := Fuse(lists, f.k, WithIdentity(f.identity))
	if err != nil {
		return "", err
	}
	monitor.Fused(fused)

	docs := make([]core.DocumentRef, len(fused))
	for i, sd := range fused {
		docs[i] = sd.Document
	}
	return f.pipeline.answer(ctx, query, docs)
}

// Decomposition answers by solving a least-to-most chain of sub-questions.
type Decomposition struct {
	decomposer *QueryDecomposer
	solver     *SequentialSolver
	count      int
}

var _ Strategy = (*Decomposition)(nil)

// Answer implements Strategy.
func (d *Decomposition) Answer(ctx context.Context, query string) (string, error) {
	subQuestions, err := d.decomposer.Decompose(ctx, query, d.count)
	if err != nil {
		return "", err
	}
	monitorFrom(ctx).QueriesGenerated(toQueries(subQuestions))

	answer, _, err := d.solver.Solve(ctx, query, subQuestions)
	return answer, err
}
