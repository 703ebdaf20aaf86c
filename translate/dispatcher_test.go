package translate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	aimock "github.com/poiesic/ragquery/ai/mock"
	"github.com/poiesic/ragquery/core"
	retrievalmock "github.com/poiesic/ragquery/retrieval/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, ret *retrievalmock.MockRetriever, gen *aimock.MockGenerator, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(ret, gen, opts...)
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

func TestDispatcher_Methods(t *testing.T) {
	d := newTestDispatcher(t, retrievalmock.NewMockRetriever(nil), aimock.NewMockGenerator())

	methods := d.Methods()
	assert.Equal(t, []core.Method{core.MethodMultiQuery, core.MethodFusion, core.MethodDecomposition}, methods)

	methods[0] = "changed"
	assert.Equal(t, core.MethodMultiQuery, d.Methods()[0])
}

func TestDispatcher_UnknownMethod(t *testing.T) {
	ret := retrievalmock.NewMockRetriever(nil)
	gen := aimock.NewMockGenerator()
	d := newTestDispatcher(t, ret, gen)

	for _, method := range []string{"hyde", "", "step_back"} {
		answer, err := d.Run(context.Background(), method, "What is task decomposition?")
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.ErrorIs(t, err, core.ErrUnknownMethod)
		assert.Empty(t, answer)
	}

	assert.Zero(t, ret.CallCount())
	assert.Zero(t, gen.CallCount())
}

func TestDispatcher_EmptyQuery(t *testing.T) {
	ret := retrievalmock.NewMockRetriever(nil)
	gen := aimock.NewMockGenerator()
	d := newTestDispatcher(t, ret, gen)

	_, err := d.Run(context.Background(), "fusion", "   ")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, ret.CallCount())
	assert.Zero(t, gen.CallCount())
}

func TestDispatcher_MultiQuery(t *testing.T) {
	ret := retrievalmock.NewMockRetriever(map[string][]core.DocumentRef{
		"v1": {doc("A"), doc("B")},
		"v2": {doc("B"), doc("C")},
		"v3": {doc("D"), doc("A")},
	})
	gen := scriptedGenerator{variants: "v1\nv2\nv3", answer: "the answer"}.mock()
	d := newTestDispatcher(t, ret, gen, WithQueryCount(core.MethodMultiQuery, 3))

	monitor := newRecordingMonitor()
	answer, err := d.RunWithMonitor(context.Background(), "multi_query", "original", monitor)
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)

	// Only the generated variants are retrieved.
	assert.ElementsMatch(t, []string{"v1", "v2", "v3"}, ret.Queries())

	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "generate 3 different versions")
	assert.Contains(t, prompts[1], "A\n\nB\n\nC\n\nD\n\nQuestion: original")

	assert.Equal(t, core.MethodMultiQuery, monitor.method)
	assert.Equal(t, "original", monitor.query)
	assert.Equal(t, toQueries([]string{"v1", "v2", "v3"}), monitor.generated)
	assert.Equal(t, toQueries([]string{"v1", "v2", "v3"}), monitor.retrieved, "reported in variant order")
	assert.Equal(t, "the answer", monitor.answer)
	assert.NoError(t, monitor.err)
	assert.Equal(t, 1, monitor.finished)
}

func TestDispatcher_Fusion(t *testing.T) {
	ret := retrievalmock.NewMockRetriever(map[string][]core.DocumentRef{
		"s1": {doc("A"), doc("B"), doc("C")},
		"s2": {doc("B"), doc("A"), doc("C")},
	})
	gen := scriptedGenerator{variants: "1. s1\n2. s2\n3. s3", answer: "fused answer"}.mock()
	d := newTestDispatcher(t, ret, gen, WithQueryCount(core.MethodFusion, 2))

	monitor := newRecordingMonitor()
	answer, err := d.RunWithMonitor(context.Background(), "fusion", "original", monitor)
	require.NoError(t, err)
	assert.Equal(t, "fused answer", answer)

	assert.ElementsMatch(t, []string{"s1", "s2"}, ret.Queries(), "extra variants are dropped")
	require.Len(t, monitor.fused, 3)
	assert.Equal(t, []string{"A", "B", "C"}, contents(monitor.fused))

	prompts := gen.Prompts()
	assert.Contains(t, prompts[0], "Output (2 queries):")
	assert.Contains(t, prompts[1], "A\n\nB\n\nC\n\nQuestion: original")
}

func TestDispatcher_FusionOptions(t *testing.T) {
	ret := retrievalmock.NewMockRetriever(map[string][]core.DocumentRef{
		"s1": {{ID: 1, Content: "dup"}},
		"s2": {{ID: 2, Content: "dup"}},
	})
	gen := scriptedGenerator{variants: "s1\ns2", answer: "ok"}.mock()
	d := newTestDispatcher(t, ret, gen,
		WithQueryCount(core.MethodFusion, 2),
		WithRRFK(10),
		WithFusionIdentity(IdentityDocumentID),
	)

	monitor := newRecordingMonitor()
	_, err := d.RunWithMonitor(context.Background(), "fusion", "q", monitor)
	require.NoError(t, err)

	require.Len(t, monitor.fused, 2)
	assert.InDelta(t, 1.0/11, monitor.fused[0].Score, 1e-12)
}

func TestDispatcher_Decomposition(t *testing.T) {
	script := chainGenerator()
	script.variants = "1. " + chainQuestions[0] + "\n2. " + chainQuestions[1] + "\n3. " + chainQuestions[2]
	gen := script.mock()
	ret := chainRetriever()
	d := newTestDispatcher(t, ret, gen)

	monitor := newRecordingMonitor()
	answer, err := d.RunWithMonitor(context.Background(), "decomposition", "How do agents use memory?", monitor)
	require.NoError(t, err)
	assert.Equal(t, "final synthesis", answer)

	assert.Equal(t, chainQuestions, ret.Queries(), "sub-questions retrieved in order")
	assert.Equal(t, toQueries(chainQuestions), monitor.generated)
	assert.Len(t, monitor.solved, 3)
	assert.Equal(t, 5, gen.CallCount(), "decompose, three steps, synthesis")
}

func TestDispatcher_DecompositionAbort(t *testing.T) {
	script := chainGenerator()
	script.variants = chainQuestions[0] + "\n" + chainQuestions[1] + "\n" + chainQuestions[2]
	gen := script.mock()
	ret := chainRetriever()
	ret.RetrieveFunc = func(_ context.Context, query string) ([]core.DocumentRef, error) {
		if query == chainQuestions[1] {
			return nil, errors.New("down")
		}
		return []core.DocumentRef{doc("ctx")}, nil
	}
	d := newTestDispatcher(t, ret, gen)

	monitor := newRecordingMonitor()
	answer, err := d.RunWithMonitor(context.Background(), "decomposition", "q", monitor)
	assert.Empty(t, answer)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.Index)
	assert.ErrorIs(t, monitor.err, ErrChainAborted)
	assert.NotContains(t, ret.Queries(), chainQuestions[2])
}

func TestDispatcher_VariantFailure(t *testing.T) {
	boom := errors.New("vector store offline")
	ret := retrievalmock.NewMockRetriever(nil)
	ret.RetrieveFunc = func(_ context.Context, query string) ([]core.DocumentRef, error) {
		if query == "v2" {
			return nil, boom
		}
		return []core.DocumentRef{doc(query)}, nil
	}
	gen := scriptedGenerator{variants: "v1\nv2\nv3", answer: "should not be produced"}.mock()
	d := newTestDispatcher(t, ret, gen, WithQueryCount(core.MethodFusion, 3))

	answer, err := d.Run(context.Background(), "fusion", "q")
	assert.Empty(t, answer)
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.ErrorIs(t, err, boom)

	var variantErr *VariantError
	require.ErrorAs(t, err, &variantErr)
	assert.Equal(t, 1, variantErr.Index)
	assert.Equal(t, "v2", variantErr.Query)

	assert.Equal(t, 1, gen.CallCount(), "no answer is generated")
}

func TestDispatcher_NoDocuments(t *testing.T) {
	ret := retrievalmock.NewMockRetriever(nil)
	gen := scriptedGenerator{variants: "a\nb\nc\nd\ne", answer: "x"}.mock()
	d := newTestDispatcher(t, ret, gen)

	_, err := d.Run(context.Background(), "multi_query", "q")
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.Equal(t, 1, gen.CallCount())
}

func TestDispatcher_GenerationFailure(t *testing.T) {
	boom := errors.New("model missing")
	gen := aimock.NewMockGenerator()
	gen.GenerateTextFunc = func(_ context.Context, _ string) (string, error) {
		return "", boom
	}
	ret := retrievalmock.NewMockRetriever(nil)
	d := newTestDispatcher(t, ret, gen)

	for _, method := range []string{"multi_query", "fusion", "decomposition"} {
		_, err := d.Run(context.Background(), method, "q")
		assert.ErrorIs(t, err, ErrGeneration, method)
	}
	assert.Zero(t, ret.CallCount())
}

func TestDispatcher_PoolBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	ret := retrievalmock.NewMockRetriever(nil)
	ret.RetrieveFunc = func(_ context.Context, query string) ([]core.DocumentRef, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return []core.DocumentRef{doc(query)}, nil
	}
	gen := scriptedGenerator{variants: "a\nb\nc\nd\ne\nf", answer: "ok"}.mock()
	d := newTestDispatcher(t, ret, gen,
		WithPoolSize(2),
		WithQueryCount(core.MethodMultiQuery, 6),
	)

	answer, err := d.Run(context.Background(), "multi_query", "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, 6, ret.CallCount())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcher_RunID(t *testing.T) {
	gen := scriptedGenerator{variants: "a\nb\nc\nd", answer: "ok"}.mock()
	ret := retrievalmock.NewMockRetriever(nil)
	ret.RetrieveFunc = func(_ context.Context, query string) ([]core.DocumentRef, error) {
		return []core.DocumentRef{doc(query)}, nil
	}
	d := newTestDispatcher(t, ret, gen)

	first := newRecordingMonitor()
	_, err := d.RunWithMonitor(context.Background(), " Fusion ", "q", first)
	require.NoError(t, err)
	second := newRecordingMonitor()
	_, err = d.RunWithMonitor(context.Background(), "fusion", "q", second)
	require.NoError(t, err)

	_, err = uuid.Parse(first.runID)
	assert.NoError(t, err)
	assert.NotEqual(t, first.runID, second.runID)
	assert.Equal(t, core.MethodFusion, first.method)
}

func TestNewDispatcher_Validation(t *testing.T) {
	ret := retrievalmock.NewMockRetriever(nil)
	gen := aimock.NewMockGenerator()

	tests := []struct {
		name string
		opts []Option
	}{
		{"unknown method count", []Option{WithQueryCount("hyde", 2)}},
		{"zero count", []Option{WithQueryCount(core.MethodFusion, 0)}},
		{"zero k", []Option{WithRRFK(0)}},
		{"negative k", []Option{WithRRFK(-5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDispatcher(ret, gen, tt.opts...)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := NewDispatcher(nil, gen)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewDispatcher(ret, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestUniqueUnion(t *testing.T) {
	lists := []core.RankedList{
		{doc("A"), doc("B")},
		{},
		{doc("B"), doc("C"), doc("A")},
	}
	got := uniqueUnion(lists)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{got[0].Content, got[1].Content, got[2].Content})
	assert.Empty(t, uniqueUnion(nil))
}
