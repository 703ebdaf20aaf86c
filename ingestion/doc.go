// Package ingestion loads web documents into the chunk index.
//
// The Loader fetches a page, keeps the text of elements matching a CSS
// selector, splits it into overlapping chunks, embeds the chunks in
// concurrent batches and stores them. Chunk IDs are derived from source and
// content, so loading an unchanged page twice stores nothing new and skips
// the embedding calls for chunks already present.
package ingestion
