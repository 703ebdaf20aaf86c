package core

import (
	"testing"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	t.Run("identical content yields identical ids", func(t *testing.T) {
		assert.Equal(t, IDFromContent("agent memory"), IDFromContent("agent memory"))
	})

	t.Run("different content yields different ids", func(t *testing.T) {
		assert.NotEqual(t, IDFromContent("agent memory"), IDFromContent("agent memory "))
	})
}

func TestChunkRef(t *testing.T) {
	chunk := &Chunk{
		Id:       IDFromContent("task decomposition"),
		Source:   "https://example.com/post",
		Position: 3,
		Content:  "task decomposition",
		Vector:   []float32{0.1, 0.2},
	}

	ref := chunk.Ref()
	assert.Equal(t, chunk.Id, ref.ID)
	assert.Equal(t, chunk.Source, ref.Source)
	assert.Equal(t, chunk.Content, ref.Content)
}

func TestChunkMUS(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		chunk := Chunk{
			Id:         IDFromContent("planning"),
			Source:     "https://example.com/post",
			Position:   7,
			Content:    "planning with reflection",
			Vector:     []float32{0.25, -0.5, 1},
			InsertedAt: time.UnixMicro(1_700_000_000_000_000).UTC(),
		}

		bs := make([]byte, ChunkMUS.Size(chunk))
		n := ChunkMUS.Marshal(chunk, bs)
		assert.Equal(t, len(bs), n)

		decoded, read, err := ChunkMUS.Unmarshal(bs)
		require.NoError(t, err)
		assert.Equal(t, n, read)
		assert.Equal(t, chunk, decoded)
	})

	t.Run("empty vector and zero time", func(t *testing.T) {
		chunk := Chunk{Id: 1, Source: "s", Content: "c"}

		bs := make([]byte, ChunkMUS.Size(chunk))
		ChunkMUS.Marshal(chunk, bs)

		decoded, _, err := ChunkMUS.Unmarshal(bs)
		require.NoError(t, err)
		assert.Nil(t, decoded.Vector)
		assert.True(t, decoded.InsertedAt.IsZero())
	})

	t.Run("truncated input", func(t *testing.T) {
		chunk := Chunk{Id: 1, Source: "source", Content: "content", Vector: []float32{1, 2, 3}}

		bs := make([]byte, ChunkMUS.Size(chunk))
		ChunkMUS.Marshal(chunk, bs)

		_, _, err := ChunkMUS.Unmarshal(bs[:len(bs)-4])
		assert.Error(t, err)
	})

	t.Run("vector length beyond input", func(t *testing.T) {
		chunk := Chunk{Id: 1, Source: "s", Content: "c"}
		bs := make([]byte, ChunkMUS.Size(chunk))
		ChunkMUS.Marshal(chunk, bs)

		// Rewrite the vector count (after id, source, position, content) to a huge value.
		prefix := varint.Uint64.Size(1) + ord.String.Size("s") + varint.Int.Size(0) + ord.String.Size("c")
		corrupt := make([]byte, prefix+varint.Int.Size(1<<40))
		copy(corrupt, bs[:prefix])
		varint.Int.Marshal(1<<40, corrupt[prefix:])

		_, _, err := ChunkMUS.Unmarshal(corrupt)
		assert.ErrorIs(t, err, mus.ErrTooSmallByteSlice)
	})
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Method
		wantErr bool
	}{
		{"multi query", "multi_query", MethodMultiQuery, false},
		{"fusion", "fusion", MethodFusion, false},
		{"decomposition", "decomposition", MethodDecomposition, false},
		{"mixed case and spaces", "  Fusion ", MethodFusion, false},
		{"unknown", "hyde", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMethod(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMethod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateChunk(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateChunk(&Chunk{Source: "s", Content: "c"}))
	})

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, ValidateChunk(nil), ErrInvalidChunk)
	})

	t.Run("empty content", func(t *testing.T) {
		err := ValidateChunk(&Chunk{Source: "s"})
		assert.ErrorIs(t, err, ErrInvalidChunk)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("empty source", func(t *testing.T) {
		assert.ErrorIs(t, ValidateChunk(&Chunk{Content: "c"}), ErrEmptySource)
	})

	t.Run("negative position", func(t *testing.T) {
		assert.ErrorIs(t, ValidateChunk(&Chunk{Source: "s", Content: "c", Position: -1}), ErrNegativePosition)
	})
}

func TestChunkID(t *testing.T) {
	a := ChunkID("https://example.com/a", "same text")
	b := ChunkID("https://example.com/b", "same text")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ChunkID("https://example.com/a", "same text"))
}
