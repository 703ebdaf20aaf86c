// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored document fragments.
// It is derived from content so that identical fragments share an ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the storage ID of a fragment from its source and content.
// The same text loaded from two sources yields two distinct chunks.
func ChunkID(source, content string) ID {
	return IDFromContent(source + "\x00" + content)
}

// Query is one query string together with its position in a generated batch.
// The original user query uses OriginalQueryIndex.
type Query struct {
	Index int
	Text  string
}

// OriginalQueryIndex marks a Query that was supplied by the user rather than generated.
const OriginalQueryIndex = -1

// DocumentRef is an opaque reference to a retrieved document fragment.
type DocumentRef struct {
	ID      ID
	Source  string // URL or path the fragment was loaded from
	Content string
}

// RankedList is the ordered result of a single retrieval.
// Rank is positional and 1-based: the first element has rank 1.
type RankedList []DocumentRef

// ScoredDocument is a document together with its fused score.
type ScoredDocument struct {
	Document DocumentRef
	Score    float64
	BestRank int // lowest 1-based rank across all input lists
}

// QAPair is one solved step of a sub-question chain.
type QAPair struct {
	Question string
	Answer   string
}

// Chunk is an indexed document fragment with its embedding.
type Chunk struct {
	Id         ID
	Source     string
	Position   int // zero-based position of the fragment within its source
	Content    string
	Vector     []float32
	InsertedAt time.Time
}

// Ref returns the retrieval view of the chunk.
func (c *Chunk) Ref() DocumentRef {
	return DocumentRef{
		ID:      c.Id,
		Source:  c.Source,
		Content: c.Content,
	}
}

// SimilarityMatch is a chunk returned from vector similarity search.
type SimilarityMatch struct {
	Chunk *Chunk
	Score float32
}
