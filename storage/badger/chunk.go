package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/loopwork/cardpile/core"
	"github.com/loopwork/cardpile/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &ChunkRepository{backend: backend}, nil
}

// Close releases repository resources. The shared backend is closed by its
// owner.
func (r *ChunkRepository) Close() error {
	return nil
}

// ReplaceChunks atomically replaces the stored chunk set of a card.
// Existing chunks are deleted and the new batch inserted in a single
// transaction, so readers never observe a mix of old and new chunks.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, cardId core.ID, chunks []*core.Chunk) error {
	if cardId == "" {
		return core.ErrMissingCardId
	}
	for _, chunk := range chunks {
		if chunk.CardId != cardId {
			return core.ErrMissingCardId
		}
		if err := core.ValidateChunk(chunk, 0); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeCardChunkPrefix(cardId)

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)

		var stale [][]byte
		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			stale = append(stale, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		for _, chunk := range chunks {
			if chunk.Id == "" {
				chunk.Id = core.NewID()
			}
			key := makeChunkKey(cardId, chunk.Seq)
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}

		return tx.Commit()
	}, true)
}

// GetChunks retrieves all chunks of a card ordered by sequence number.
func (r *ChunkRepository) GetChunks(ctx context.Context, cardId core.ID) ([]*core.Chunk, error) {
	if cardId == "" {
		return nil, core.ErrMissingCardId
	}

	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeCardChunkPrefix(cardId)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, chunk)
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindSimilar returns chunks whose vectors score at least minSimilarity
// against the query vector, best matches first.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if len(vector) == 0 {
		return nil, core.ErrVectorDimension
	}
	return r.backend.FindSimilarChunks(ctx, vector, minSimilarity, limit)
}
