package core

import (
	"errors"
	"math"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// ErrNegativeLength is returned when an encoded slice length is below zero.
var ErrNegativeLength = errors.New("negative length")

// ChunkMUS is the MUS serializer for Chunk.
// Field order: Id, Source, Position, Content, Vector, InsertedAt (unix micro).
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (s chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.Id), bs)
	n += ord.String.Marshal(v.Source, bs[n:])
	n += varint.Int.Marshal(v.Position, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	n += varint.Int64.Marshal(insertedMicros(v.InsertedAt), bs[n:])
	return n
}

func (s chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	var (
		n1    int
		id    uint64
		count int
		bits  uint32
		micro int64
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Id = ID(id)

	v.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	v.Position, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	count, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if count < 0 {
		err = ErrNegativeLength
		return
	}
	// Every element takes at least one byte.
	if count > len(bs)-n {
		err = mus.ErrTooSmallByteSlice
		return
	}
	if count > 0 {
		v.Vector = make([]float32, count)
		for i := range v.Vector {
			bits, n1, err = varint.Uint32.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			v.Vector[i] = math.Float32frombits(bits)
		}
	}

	micro, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if micro != 0 {
		v.InsertedAt = time.UnixMicro(micro).UTC()
	}
	return
}

func (s chunkMUS) Size(v Chunk) (size int) {
	size = varint.Uint64.Size(uint64(v.Id))
	size += ord.String.Size(v.Source)
	size += varint.Int.Size(v.Position)
	size += ord.String.Size(v.Content)
	size += varint.Int.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	size += varint.Int64.Size(insertedMicros(v.InsertedAt))
	return size
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

func insertedMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
