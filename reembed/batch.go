package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/ragquery/ai"
	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/storage"
)

// BatchProcessor handles embedding generation for batches of chunks.
// Retries belong to the embedder (see ai.RetryWithBackoff); a failed call
// here fails the batch.
type BatchProcessor struct {
	repo     storage.ChunkRepository
	embedder ai.Embedder
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder) *BatchProcessor {
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
	}
}

// Process embeds a batch of chunks and writes the normalized vectors back.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	embeddings, err := bp.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d, got %d", ai.ErrEmbeddingMismatch, len(chunks), len(embeddings))
	}

	for i := range chunks {
		chunks[i].Vector = core.NormalizeVector(embeddings[i])
	}

	if err := bp.repo.UpdateVectors(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}

	return nil
}
