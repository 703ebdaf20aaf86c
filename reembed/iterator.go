package reembed

import (
	"context"

	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to fetch in each batch
	DefaultBatchSize = 100
)

// ChunkIterator walks every stored chunk in batches.
// Only IDs are held for the whole run; chunk bodies are loaded one batch at a time.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// A batchSize below one uses DefaultBatchSize.
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of chunks in ID order.
// Iteration stops on the first error from fn; context cancellation is checked
// between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := it.repo.ChunkIDs(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(ids); start += it.batchSize {
		batch, err := it.repo.GetChunks(ctx, ids[start:min(start+it.batchSize, len(ids))]...)
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
