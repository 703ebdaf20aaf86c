package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository on an open backend.
// The backend is owned by the caller.
func NewChunkRepository(backend *Backend) (storage.ChunkRepository, error) {
	return newChunkRepository(backend)
}

func newChunkRepository(backend *Backend) (*ChunkRepository, error) {
	if backend == nil {
		return nil, errors.New("badger: backend is required")
	}
	return &ChunkRepository{backend: backend}, nil
}

// Close is a no-op; the backend is closed by its owner.
func (r *ChunkRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SimilarityMatch, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// AddChunks stores chunks under content-addressed IDs, skipping ones already present.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	var added []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		seen := make(map[core.ID]struct{}, len(chunks))
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}

			chunk.Id = core.ChunkID(chunk.Source, chunk.Content)
			if _, dup := seen[chunk.Id]; dup {
				continue
			}
			seen[chunk.Id] = struct{}{}

			key := makeChunkKey(chunk.Id)
			existing, err := r.readChunk(tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				*chunk = *existing
				continue
			}

			if chunk.InsertedAt.IsZero() {
				chunk.InsertedAt = time.Now().UTC().Truncate(time.Microsecond)
			}

			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}

			// Update source index
			sourceKey := makeSourceKey(chunk.Source, chunk.Position, chunk.Id)
			if err := tx.Set(sourceKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
			added = append(added, chunk)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.backend.logger.Debug("stored chunks", "requested", len(chunks), "added", len(added))
	return added, nil
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readChunk(tx, makeChunkKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunks retrieves multiple chunks by their IDs.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := r.readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetChunksBySource retrieves every chunk loaded from source, ordered by position.
func (r *ChunkRepository) GetChunksBySource(ctx context.Context, source string) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := r.sourceIDs(tx, source)
		if err != nil {
			return err
		}
		for _, id := range ids {
			chunk, err := r.readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// DeleteSource removes every chunk loaded from source.
func (r *ChunkRepository) DeleteSource(ctx context.Context, source string) (int, error) {
	var removed int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialSourceKey(source)

		var indexKeys [][]byte
		var ids []core.ID
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var id core.ID
			if err := item.Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				iter.Close()
				return err
			}
			indexKeys = append(indexKeys, item.KeyCopy(nil))
			ids = append(ids, id)
		}
		iter.Close()

		for i, key := range indexKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
			if err := tx.Delete(makeChunkKey(ids[i])); err != nil {
				return err
			}
		}
		removed = len(ids)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ChunkIDs returns the IDs of every stored chunk in key order.
func (r *ChunkRepository) ChunkIDs(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := storage.UnmarshalID(iter.Item().Key()[len(chunkPrefix):])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateVectors rewrites the vectors of existing chunks in one transaction.
func (r *ChunkRepository) UpdateVectors(ctx context.Context, chunks ...*core.Chunk) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if chunk == nil {
				return core.ErrInvalidChunk
			}

			key := makeChunkKey(chunk.Id)
			existing, err := r.readChunk(tx, key)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("%w: chunk %d", storage.ErrNotFound, chunk.Id)
			}

			existing.Vector = chunk.Vector
			if err := tx.Set(key, storage.MarshalChunk(existing)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	r.backend.logger.Debug("updated chunk vectors", "count", len(chunks))
	return nil
}

// sourceIDs returns chunk IDs from the source index in position order.
func (r *ChunkRepository) sourceIDs(tx *badger.Txn, source string) ([]core.ID, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialSourceKey(source)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []core.ID
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readChunk reads a chunk from a transaction.
// Returns nil, nil if not found.
func (r *ChunkRepository) readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}
