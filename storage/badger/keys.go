package badger

import (
	"encoding/binary"

	"github.com/poiesic/ragquery/core"
)

// Key prefixes for different data types.
// Prefixes must not be prefixes of one another so that prefix scans never overlap.
const (
	chunkPrefix       = "chunk:"
	chunkSourcePrefix = "chksrc:"
)

// makeChunkKey generates a key for a chunk by ID.
// Format: prefix + 8-byte big-endian id
func makeChunkKey(id core.ID) []byte {
	buf := make([]byte, len(chunkPrefix)+8)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeSourceKey generates a composite key for the source index.
// Format: prefix:source\x00position:id
func makeSourceKey(source string, position int, id core.ID) []byte {
	partial := makePartialSourceKey(source)
	buf := make([]byte, len(partial)+16) // 8 bytes for position + 8 bytes for ID
	offset := copy(buf, partial)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(position))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialSourceKey generates the scan prefix for every chunk of one source.
// The NUL terminator keeps "a" from matching keys of "ab".
func makePartialSourceKey(source string) []byte {
	buf := make([]byte, 0, len(chunkSourcePrefix)+len(source)+1)
	buf = append(buf, chunkSourcePrefix...)
	buf = append(buf, source...)
	return append(buf, 0)
}
