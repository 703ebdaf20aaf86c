package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/ragquery/ai"
	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/storage"
)

const (
	// DefaultTopK is the number of fragments returned per query.
	DefaultTopK = 4

	// DefaultCacheSize is the number of query embeddings kept in memory.
	DefaultCacheSize = 256
)

// Retriever returns the document fragments most relevant to a query, best first.
// Implementations must be safe for concurrent use.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]core.DocumentRef, error)
}

// VectorRetriever implements Retriever with embedding similarity over a chunk index.
type VectorRetriever struct {
	repository    storage.ChunkRepository
	embedder      ai.Embedder
	topK          int
	minSimilarity float32
	cacheSize     int
	cache         *lru.Cache[string, []float32]
	logger        *slog.Logger
}

var _ Retriever = (*VectorRetriever)(nil)

// Option configures a VectorRetriever.
type Option func(*VectorRetriever) error

// WithTopK sets how many fragments each retrieval returns.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(r *VectorRetriever) error {
		if k < 1 {
			return fmt.Errorf("%w: got %d", ErrInvalidTopK, k)
		}
		r.topK = k
		return nil
	}
}

// WithMinSimilarity drops fragments scoring below threshold.
// Default is -1, which keeps every embedded fragment.
func WithMinSimilarity(threshold float32) Option {
	return func(r *VectorRetriever) error {
		r.minSimilarity = threshold
		return nil
	}
}

// WithCacheSize sets the number of cached query embeddings. Zero disables caching.
// Default is DefaultCacheSize.
func WithCacheSize(size int) Option {
	return func(r *VectorRetriever) error {
		if size < 0 {
			return fmt.Errorf("cache size cannot be negative: %d", size)
		}
		r.cacheSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *VectorRetriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "retriever")
		return nil
	}
}

// NewVectorRetriever creates a retriever over repository using embedder for queries.
func NewVectorRetriever(repository storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*VectorRetriever, error) {
	if repository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &VectorRetriever{
		repository:    repository,
		embedder:      embedder,
		topK:          DefaultTopK,
		minSimilarity: -1,
		cacheSize:     DefaultCacheSize,
		logger:        slog.Default().With("component", "retriever"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.cacheSize > 0 {
		cache, err := lru.New[string, []float32](r.cacheSize)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}

	return r, nil
}

// TopK returns the configured number of fragments per retrieval.
func (r *VectorRetriever) TopK() int {
	return r.topK
}

// Retrieve embeds query and returns the top-k most similar fragments.
// Equal scores are ordered by source and position, so repeated calls agree.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]core.DocumentRef, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := r.embed(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := r.repository.FindSimilar(ctx, vector, r.minSimilarity, r.topK)
	if err != nil {
		r.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	refs := make([]core.DocumentRef, 0, len(matches))
	for _, match := range matches {
		refs = append(refs, match.Chunk.Ref())
	}

	r.logger.Debug("retrieved fragments", "query", query, "count", len(refs))
	return refs, nil
}

func (r *VectorRetriever) embed(ctx context.Context, query string) ([]float32, error) {
	if r.cache != nil {
		if vector, ok := r.cache.Get(query); ok {
			return vector, nil
		}
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	vector = core.NormalizeVector(vector)

	if r.cache != nil {
		r.cache.Add(query, vector)
	}
	return vector, nil
}
