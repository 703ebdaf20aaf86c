package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
	assert.DirExists(t, tmpDir)
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	_, err = backend.FindSimilar(context.Background(), []float32{1}, 0, 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestFindSimilar_NoRecords(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	results, err := backend.FindSimilar(context.Background(), []float32{0.1, 0.2, 0.3}, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_InvalidLimit(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.FindSimilar(context.Background(), []float32{1}, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestFindSimilar_WithRecords(t *testing.T) {
	repo, backend, err := NewMemoryChunkRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	chunks := []*core.Chunk{
		{Source: "post", Position: 0, Content: "First fragment", Vector: []float32{1.0, 0.0, 0.0}},
		{Source: "post", Position: 1, Content: "Second fragment", Vector: []float32{0.9, 0.1, 0.0}},
		{Source: "post", Position: 2, Content: "Third fragment", Vector: []float32{0.0, 0.0, 1.0}},
		{Source: "post", Position: 3, Content: "Fragment without vector"},
	}

	added, err := repo.AddChunks(ctx, chunks...)
	require.NoError(t, err)
	require.Len(t, added, 4)

	results, err := backend.FindSimilar(ctx, []float32{1.0, 0.0, 0.0}, 0.8, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}
	assert.Equal(t, "First fragment", results[0].Chunk.Content)
	assert.Equal(t, "Second fragment", results[1].Chunk.Content)
}

func TestFindSimilar_ThresholdFiltering(t *testing.T) {
	repo, backend, err := NewMemoryChunkRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	_, err = repo.AddChunks(ctx,
		&core.Chunk{Source: "s", Content: "High similarity", Vector: []float32{1.0, 0.0, 0.0}},
		&core.Chunk{Source: "s", Position: 1, Content: "Medium similarity", Vector: []float32{0.7, 0.3, 0.0}},
		&core.Chunk{Source: "s", Position: 2, Content: "Low similarity", Vector: []float32{0.3, 0.7, 0.0}},
	)
	require.NoError(t, err)

	queryVector := []float32{1.0, 0.0, 0.0}

	t.Run("high threshold", func(t *testing.T) {
		results, err := backend.FindSimilar(ctx, queryVector, 0.95, 10)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("medium threshold", func(t *testing.T) {
		results, err := backend.FindSimilar(ctx, queryVector, 0.6, 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("low threshold", func(t *testing.T) {
		results, err := backend.FindSimilar(ctx, queryVector, 0.2, 10)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})
}

func TestFindSimilar_LimitAndTieOrder(t *testing.T) {
	repo, backend, err := NewMemoryChunkRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	chunks := make([]*core.Chunk, 10)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			Source:   "post",
			Position: 9 - i,
			Content:  fmt.Sprintf("fragment %d", i),
			Vector:   []float32{0.9, 0.1, 0.0},
		}
	}
	_, err = repo.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	queryVector := []float32{1.0, 0.0, 0.0}

	t.Run("limit to 3", func(t *testing.T) {
		results, err := backend.FindSimilar(ctx, queryVector, 0.5, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		// Equal scores fall back to position order
		for i, r := range results {
			assert.Equal(t, i, r.Chunk.Position)
		}
	})

	t.Run("limit higher than results", func(t *testing.T) {
		results, err := backend.FindSimilar(ctx, queryVector, 0.5, 100)
		require.NoError(t, err)
		assert.Len(t, results, 10)
	})

	t.Run("repeated searches agree", func(t *testing.T) {
		first, err := backend.FindSimilar(ctx, queryVector, 0.5, 5)
		require.NoError(t, err)
		second, err := backend.FindSimilar(ctx, queryVector, 0.5, 5)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestFindSimilar_CancelledContext(t *testing.T) {
	repo, backend, err := NewMemoryChunkRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	_, err = repo.AddChunks(context.Background(), &core.Chunk{Source: "s", Content: "c", Vector: []float32{1}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = backend.FindSimilar(ctx, []float32{1}, 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDotProduct(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{"identical vectors", []float32{1.0, 0.0, 0.0}, []float32{1.0, 0.0, 0.0}, 1.0},
		{"orthogonal vectors", []float32{1.0, 0.0, 0.0}, []float32{0.0, 1.0, 0.0}, 0.0},
		{"opposite vectors", []float32{1.0, 0.0, 0.0}, []float32{-1.0, 0.0, 0.0}, -1.0},
		{"general case", []float32{0.6, 0.8}, []float32{0.8, 0.6}, 0.96},
		{"different lengths - use min", []float32{1.0, 2.0, 3.0}, []float32{1.0, 2.0}, 5.0},
		{"empty vectors", []float32{}, []float32{}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, dotProduct(tt.a, tt.b), 0.0001)
		})
	}
}
