// Package reembed recomputes the vectors of every indexed chunk, typically
// after switching embedding models.
//
// Chunks are read in batches, embedded (the embedder owns retries),
// normalized to unit length and written back in place. Chunk IDs are derived
// from source and content, so re-embedding never changes them.
package reembed
