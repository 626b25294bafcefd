package storage

import (
	"context"

	"github.com/loopwork/cardpile/core"
)

// Repository provides common operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// CardRepository provides operations for managing cards.
type CardRepository interface {
	Repository

	// AddCard adds a card to storage.
	// Generates an ID if the card has none and sets CreatedAt/UpdatedAt.
	// Returns the card with generated fields populated.
	AddCard(ctx context.Context, card *core.Card) (*core.Card, error)

	// GetCard retrieves a single card by ID.
	// Returns ErrNotFound if the card doesn't exist.
	GetCard(ctx context.Context, id core.ID) (*core.Card, error)

	// SetCardStatus updates a card's status together with its resolved
	// content and error message, and bumps UpdatedAt. Last write wins;
	// concurrent deliveries for the same card converge on the most recent
	// terminal state. Returns ErrNotFound if the card doesn't exist.
	SetCardStatus(ctx context.Context, id core.ID, status core.CardStatus, content, errorMessage string) (*core.Card, error)

	// ListCards retrieves all cards ordered by creation time descending.
	// Returns up to limit cards; limit <= 0 means no limit.
	ListCards(ctx context.Context, limit int) ([]*core.Card, error)

	// DeleteCard removes a card by ID. The caller is responsible for
	// removing the card's chunks (see ChunkRepository.ReplaceChunks).
	// Returns ErrNotFound if the card doesn't exist.
	DeleteCard(ctx context.Context, id core.ID) error
}

// ChunkRepository provides operations for managing a card's chunk set.
type ChunkRepository interface {
	Repository

	// ReplaceChunks atomically replaces the full chunk set of a card:
	// any chunks from a previous attempt are deleted and the new batch is
	// inserted within a single transaction. Either every chunk in the
	// batch becomes visible or none do. Passing an empty batch deletes
	// the card's chunks.
	ReplaceChunks(ctx context.Context, cardId core.ID, chunks []*core.Chunk) error

	// GetChunks retrieves a card's chunks ordered by sequence number.
	GetChunks(ctx context.Context, cardId core.ID) ([]*core.Chunk, error)

	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}
