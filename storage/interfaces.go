package storage

import (
	"context"

	"github.com/poiesic/ragquery/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first); equal scores
	// are ordered by source, then position, so repeated searches agree.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SimilarityMatch, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// ChunkRepository provides operations for managing indexed document chunks.
type ChunkRepository interface {
	Repository

	// AddChunks stores chunks under content-addressed IDs (core.ChunkID).
	// Chunks whose ID already exists are skipped, so re-indexing the same
	// content is a no-op. Sets InsertedAt on new chunks.
	// Returns only the chunks that were newly stored.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetChunksBySource retrieves every chunk loaded from source, ordered by position.
	GetChunksBySource(ctx context.Context, source string) ([]*core.Chunk, error)

	// DeleteSource removes every chunk loaded from source in one transaction
	// and returns how many were removed.
	DeleteSource(ctx context.Context, source string) (int, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// ChunkIDs returns the IDs of every stored chunk in key order.
	ChunkIDs(ctx context.Context) ([]core.ID, error)

	// UpdateVectors replaces the stored vectors of existing chunks.
	// Only Vector is written; the other fields are fixed by the chunk ID.
	// Returns ErrNotFound if any chunk is missing, and nothing is written.
	UpdateVectors(ctx context.Context, chunks ...*core.Chunk) error
}
