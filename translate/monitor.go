package translate

import (
	"context"

	"github.com/poiesic/ragquery/core"
)

// Monitor provides hooks to observe a run.
// Implement this interface to track intermediate steps and results.
// Hooks are called from the goroutine running the strategy, never concurrently
// within one run.
type Monitor interface {
	Start(runID string, method core.Method, query string)
	QueriesGenerated(queries []core.Query)
	Retrieved(query core.Query, docs core.RankedList)
	Fused(docs []core.ScoredDocument)
	StepStarted(index int, question string, prior []core.QAPair)
	StepSolved(index int, pair core.QAPair)
	Finish(answer string, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ core.Method, _ string)      {}
func (n *noopMonitor) QueriesGenerated(_ []core.Query)              {}
func (n *noopMonitor) Retrieved(_ core.Query, _ core.RankedList)    {}
func (n *noopMonitor) Fused(_ []core.ScoredDocument)                {}
func (n *noopMonitor) StepStarted(_ int, _ string, _ []core.QAPair) {}
func (n *noopMonitor) StepSolved(_ int, _ core.QAPair)              {}
func (n *noopMonitor) Finish(_ string, _ error)                     {}

type monitorKey struct{}

// WithMonitor returns a context that reports run progress to monitor.
func WithMonitor(ctx context.Context, monitor Monitor) context.Context {
	return context.WithValue(ctx, monitorKey{}, monitor)
}

func monitorFrom(ctx context.Context) Monitor {
	if m, ok := ctx.Value(monitorKey{}).(Monitor); ok && m != nil {
		return m
	}
	return &noopMonitor{}
}

func toQueries(texts []string) []core.Query {
	queries := make([]core.Query, len(texts))
	for i, text := range texts {
		queries[i] = core.Query{Index: i, Text: text}
	}
	return queries
}
