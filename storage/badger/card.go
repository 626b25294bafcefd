package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/loopwork/cardpile/core"
	"github.com/loopwork/cardpile/storage"
)

// CardRepository implements storage.CardRepository for BadgerDB.
type CardRepository struct {
	backend *Backend
}

var _ storage.CardRepository = (*CardRepository)(nil)

// NewCardRepository creates a new CardRepository.
func NewCardRepository(backend *Backend) (*CardRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &CardRepository{backend: backend}, nil
}

// Close releases repository resources. The shared backend is closed by its
// owner.
func (r *CardRepository) Close() error {
	return nil
}

// AddCard adds a card to storage.
func (r *CardRepository) AddCard(ctx context.Context, card *core.Card) (*core.Card, error) {
	if err := core.ValidateCard(card); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if card.Id == "" {
			card.Id = core.NewID()
		}
		card.CreatedAt = time.Now().UTC()
		card.UpdatedAt = card.CreatedAt

		key := makeCardKey(card.Id)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := tx.Set(key, storage.MarshalCard(card)); err != nil {
			return err
		}

		dateKey := makeCardDateKey(card.CreatedAt, card.Id)
		if err := tx.Set(dateKey, []byte(card.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return card, err
}

// GetCard retrieves a single card by ID.
func (r *CardRepository) GetCard(ctx context.Context, id core.ID) (*core.Card, error) {
	var result *core.Card
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readCard(tx, id)
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

// SetCardStatus updates a card's status, content and error message.
// The write is last-write-wins: no precondition is checked against the
// stored status, so overlapping deliveries for the same card converge on
// whichever worker writes last.
func (r *CardRepository) SetCardStatus(ctx context.Context, id core.ID, status core.CardStatus, content, errorMessage string) (*core.Card, error) {
	if err := core.ValidateCardStatus(status); err != nil {
		return nil, err
	}

	var result *core.Card
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		card, err := r.readCard(tx, id)
		if err != nil {
			return err
		}
		if card == nil {
			return storage.ErrNotFound
		}

		card.Status = status
		card.Content = content
		card.ErrorMessage = errorMessage
		card.UpdatedAt = time.Now().UTC()

		if err := tx.Set(makeCardKey(card.Id), storage.MarshalCard(card)); err != nil {
			return err
		}

		result = card
		return tx.Commit()
	}, true)

	return result, err
}

// ListCards retrieves cards ordered by creation time descending.
func (r *CardRepository) ListCards(ctx context.Context, limit int) ([]*core.Card, error) {
	var results []*core.Card

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(cardDatePrefix + ":")
		// Seek past the end of the date index; reverse iteration then
		// yields newest cards first.
		seek := append(append([]byte{}, prefix...), 0xff)

		for iter.Seek(seek); iter.ValidForPrefix(prefix); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				id = core.ID(val)
				return nil
			})
			if err != nil {
				return err
			}

			card, err := r.readCard(tx, id)
			if err != nil {
				return err
			}
			if card == nil {
				continue // stale index entry
			}

			results = append(results, card)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteCard removes a card by ID.
func (r *CardRepository) DeleteCard(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		card, err := r.readCard(tx, id)
		if err != nil {
			return err
		}
		if card == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(makeCardDateKey(card.CreatedAt, card.Id)); err != nil {
			return err
		}
		if err := tx.Delete(makeCardKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readCard reads a card within a transaction. Returns nil if not found.
func (r *CardRepository) readCard(tx *badger.Txn, id core.ID) (*core.Card, error) {
	item, err := tx.Get(makeCardKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var card *core.Card
	err = item.Value(func(val []byte) error {
		var err error
		card, err = storage.UnmarshalCard(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}
