package translate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragquery/ai"
	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/retrieval"
)

// Default number of generated queries per method.
const (
	DefaultMultiQueryCount    = 5
	DefaultFusionCount        = 4
	DefaultDecompositionCount = 3

	// DefaultPoolSize bounds concurrent retrievals across all runs.
	DefaultPoolSize = 8
)

// Dispatcher runs a query through the strategy selected by method name.
type Dispatcher struct {
	strategies map[core.Method]Strategy
	pool       *ants.Pool
	poolSize   int
	counts     map[core.Method]int
	rrfK       float64
	identity   Identity
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithPoolSize sets the worker pool size for concurrent retrievals.
// Default is DefaultPoolSize.
func WithPoolSize(size int) Option {
	return func(d *Dispatcher) error {
		if size < 1 {
			size = 1
		}
		d.poolSize = size
		return nil
	}
}

// WithQueryCount sets how many variants or sub-questions method generates.
func WithQueryCount(method core.Method, count int) Option {
	return func(d *Dispatcher) error {
		if _, ok := d.counts[method]; !ok {
			return fmt.Errorf("%w: %w: %q", ErrConfiguration, core.ErrUnknownMethod, method)
		}
		if count < 1 {
			return fmt.Errorf("%w: %s count must be at least 1, got %d", ErrConfiguration, method, count)
		}
		d.counts[method] = count
		return nil
	}
}

// WithRRFK sets the Reciprocal Rank Fusion constant for the fusion method.
// Default is DefaultRRFK.
func WithRRFK(k float64) Option {
	return func(d *Dispatcher) error {
		if !(k > 0) || math.IsInf(k, 1) {
			return fmt.Errorf("%w: rrf k must be positive and finite, got %v", ErrConfiguration, k)
		}
		d.rrfK = k
		return nil
	}
}

// WithFusionIdentity sets how the fusion method matches fragments across lists.
// Default is IdentityContent.
func WithFusionIdentity(identity Identity) Option {
	return func(d *Dispatcher) error {
		d.identity = identity
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger.With("component", "dispatcher")
		return nil
	}
}

// NewDispatcher creates a dispatcher for every supported method.
// Call Release when done to stop the worker pool.
func NewDispatcher(retriever retrieval.Retriever, generator ai.Generator, opts ...Option) (*Dispatcher, error) {
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", ErrConfiguration)
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: generator is required", ErrConfiguration)
	}

	d := &Dispatcher{
		poolSize: DefaultPoolSize,
		counts: map[core.Method]int{
			core.MethodMultiQuery:    DefaultMultiQueryCount,
			core.MethodFusion:        DefaultFusionCount,
			core.MethodDecomposition: DefaultDecompositionCount,
		},
		rrfK:     DefaultRRFK,
		identity: IdentityContent,
		logger:   slog.Default().With("component", "dispatcher"),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(d.poolSize)
	if err != nil {
		return nil, err
	}
	d.pool = pool

	shared := &pipeline{
		retriever: retriever,
		generator: generator,
		pool:      pool,
		logger:    d.logger,
	}

	perspectives, err := NewPerspectiveGenerator(generator)
	if err != nil {
		d.Release()
		return nil, err
	}
	searchQueries, err := NewQueryGenerator(generator)
	if err != nil {
		d.Release()
		return nil, err
	}
	decomposer, err := NewQueryDecomposer(generator)
	if err != nil {
		d.Release()
		return nil, err
	}
	solver, err := NewSequentialSolver(retriever, generator)
	if err != nil {
		d.Release()
		return nil, err
	}

	d.strategies = map[core.Method]Strategy{
		core.MethodMultiQuery: &MultiQuery{
			pipeline:  shared,
			generator: perspectives,
			count:     d.counts[core.MethodMultiQuery],
		},
		core.MethodFusion: &Fusion{
			pipeline:  shared,
			generator: searchQueries,
			count:     d.counts[core.MethodFusion],
			k:         d.rrfK,
			identity:  d.identity,
		},
		core.MethodDecomposition: &Decomposition{
			decomposer: decomposer,
			solver:     solver,
			count:      d.counts[core.MethodDecomposition],
		},
	}

	return d, nil
}

// Methods returns the supported method names.
func (d *Dispatcher) Methods() []core.Method {
	return slices.Clone(core.Methods)
}

// Run answers query with the named method.
// An unknown method or blank query fails with ErrConfiguration before any
// retrieval or generation call is made.
func (d *Dispatcher) Run(ctx context.Context, method string, query string) (string, error) {
	m, err := core.ParseMethod(method)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query is empty", ErrConfiguration)
	}
	strategy, ok := d.strategies[m]
	if !ok {
		return "", fmt.Errorf("%w: %w: %q", ErrConfiguration, core.ErrUnknownMethod, method)
	}

	runID := uuid.NewString()
	logger := d.logger.With("run", runID, "method", m)
	monitor := monitorFrom(ctx)

	logger.Info("run started", "query", query)
	monitor.Start(runID, m, query)
	start := time.Now()

	answer, err := strategy.Answer(ctx, query)
	monitor.Finish(answer, err)
	if err != nil {
		logger.Error("run failed", "elapsed", time.Since(start), "err", err)
		return "", err
	}

	logger.Info("run finished", "elapsed", time.Since(start))
	return answer, nil
}

// RunWithMonitor is Run with monitor receiving progress callbacks.
func (d *Dispatcher) RunWithMonitor(ctx context.Context, method string, query string, monitor Monitor) (string, error) {
	if monitor != nil {
		ctx = WithMonitor(ctx, monitor)
	}
	return d.Run(ctx, method, query)
}

// Release stops the worker pool.
func (d *Dispatcher) Release() {
	if d.pool != nil {
		d.pool.Release()
	}
}
