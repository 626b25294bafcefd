package badger

import (
	"context"
	"testing"

	"github.com/loopwork/cardpile/core"
)

func addTestCard(t *testing.T, ctx context.Context, repo interface {
	AddCard(context.Context, *core.Card) (*core.Card, error)
}) *core.Card {
	t.Helper()
	card, err := repo.AddCard(ctx, &core.Card{
		Type:   core.CardTypeText,
		Source: "chunk test card",
		Status: core.CardStatusPending,
	})
	if err != nil {
		t.Fatalf("Failed to add card: %v", err)
	}
	return card
}

func TestReplaceAndGetChunks(t *testing.T) {
	cardRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); cardRepo.Close(); backend.Close() }()

	ctx := context.Background()
	card := addTestCard(t, ctx, cardRepo)

	chunks := []*core.Chunk{
		{CardId: card.Id, Seq: 0, Text: "first chunk", Vector: []float32{1, 0, 0}},
		{CardId: card.Id, Seq: 1, Text: "second chunk", Vector: []float32{0, 1, 0}},
	}

	if err := chunkRepo.ReplaceChunks(ctx, card.Id, chunks); err != nil {
		t.Fatalf("Failed to replace chunks: %v", err)
	}

	stored, err := chunkRepo.GetChunks(ctx, card.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(stored))
	}
	if stored[0].Seq != 0 || stored[1].Seq != 1 {
		t.Fatalf("Expected chunks ordered by seq, got %d then %d", stored[0].Seq, stored[1].Seq)
	}
	if stored[0].Id == "" {
		t.Fatal("Expected chunk IDs to be assigned")
	}
}

func TestReplaceChunksDiscardsStale(t *testing.T) {
	cardRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); cardRepo.Close(); backend.Close() }()

	ctx := context.Background()
	card := addTestCard(t, ctx, cardRepo)

	first := []*core.Chunk{
		{CardId: card.Id, Seq: 0, Text: "old a", Vector: []float32{1, 0}},
		{CardId: card.Id, Seq: 1, Text: "old b", Vector: []float32{0, 1}},
		{CardId: card.Id, Seq: 2, Text: "old c", Vector: []float32{1, 1}},
	}
	if err := chunkRepo.ReplaceChunks(ctx, card.Id, first); err != nil {
		t.Fatalf("Failed to replace chunks: %v", err)
	}

	// Reprocessing a shorter document must not leave old tail chunks behind
	second := []*core.Chunk{
		{CardId: card.Id, Seq: 0, Text: "new a", Vector: []float32{1, 0}},
	}
	if err := chunkRepo.ReplaceChunks(ctx, card.Id, second); err != nil {
		t.Fatalf("Failed to replace chunks: %v", err)
	}

	stored, err := chunkRepo.GetChunks(ctx, card.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected 1 chunk after replacement, got %d", len(stored))
	}
	if stored[0].Text != "new a" {
		t.Fatalf("Expected 'new a', got '%s'", stored[0].Text)
	}
}

func TestReplaceChunksCardIdMismatch(t *testing.T) {
	cardRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); cardRepo.Close(); backend.Close() }()

	ctx := context.Background()
	card := addTestCard(t, ctx, cardRepo)

	chunks := []*core.Chunk{
		{CardId: core.ID("other-card"), Seq: 0, Text: "stray", Vector: []float32{1}},
	}
	if err := chunkRepo.ReplaceChunks(ctx, card.Id, chunks); err == nil {
		t.Fatal("Expected error for chunk belonging to another card")
	}
}

func TestFindSimilar(t *testing.T) {
	cardRepo, chunkRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); cardRepo.Close(); backend.Close() }()

	ctx := context.Background()
	card := addTestCard(t, ctx, cardRepo)

	chunks := []*core.Chunk{
		{CardId: card.Id, Seq: 0, Text: "about cats", Vector: []float32{1, 0, 0}},
		{CardId: card.Id, Seq: 1, Text: "about dogs", Vector: []float32{0, 1, 0}},
		{CardId: card.Id, Seq: 2, Text: "about birds", Vector: []float32{0, 0, 1}},
	}
	if err := chunkRepo.ReplaceChunks(ctx, card.Id, chunks); err != nil {
		t.Fatalf("Failed to replace chunks: %v", err)
	}

	results, err := chunkRepo.FindSimilar(ctx, []float32{0.9, 0.1, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result above threshold, got %d", len(results))
	}
	if results[0].Chunk.Text != "about cats" {
		t.Fatalf("Expected 'about cats', got '%s'", results[0].Chunk.Text)
	}

	// Lower threshold returns more results, best first
	results, err = chunkRepo.FindSimilar(ctx, []float32{0.9, 0.1, 0}, 0.0, 2)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected limit of 2 results, got %d", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Fatal("Expected results sorted by score descending")
	}
}
