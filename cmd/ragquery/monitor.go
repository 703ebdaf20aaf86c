package main

import (
	"fmt"
	"io"

	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/translate"
)

// traceMonitor prints the intermediate steps of a run.
type traceMonitor struct {
	w io.Writer
}

var _ translate.Monitor = (*traceMonitor)(nil)

func newTraceMonitor(w io.Writer) *traceMonitor {
	return &traceMonitor{w: w}
}

func (m *traceMonitor) Start(runID string, method core.Method, query string) {
	fmt.Fprintf(m.w, "run %s (%s): %s\n", runID, method, query)
}

func (m *traceMonitor) QueriesGenerated(queries []core.Query) {
	fmt.Fprintln(m.w, "generated:")
	for _, q := range queries {
		fmt.Fprintf(m.w, "  %d. %s\n", q.Index+1, q.Text)
	}
}

func (m *traceMonitor) Retrieved(query core.Query, docs core.RankedList) {
	fmt.Fprintf(m.w, "retrieved %d for %q\n", len(docs), query.Text)
}

func (m *traceMonitor) Fused(docs []core.ScoredDocument) {
	fmt.Fprintf(m.w, "fused %d documents:\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(m.w, "  %.5f  %s\n", d.Score, preview(d.Document.Content, 72))
	}
}

func (m *traceMonitor) StepStarted(index int, question string, prior []core.QAPair) {
	fmt.Fprintf(m.w, "step %d (%d prior): %s\n", index+1, len(prior), question)
}

func (m *traceMonitor) StepSolved(index int, pair core.QAPair) {
	fmt.Fprintf(m.w, "answer %d: %s\n", index+1, pair.Answer)
}

func (m *traceMonitor) Finish(_ string, err error) {
	if err != nil {
		fmt.Fprintf(m.w, "failed: %v\n", err)
		return
	}
	fmt.Fprintln(m.w, "done")
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
