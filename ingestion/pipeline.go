// Copyright 2026 Loopwork Systems
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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loopwork/cardpile/acquire"
	"github.com/loopwork/cardpile/ai"
	"github.com/loopwork/cardpile/chunker"
	"github.com/loopwork/cardpile/core"
	"github.com/loopwork/cardpile/storage"
)

// Pipeline processes a single card end to end: acquire, chunk, embed,
// persist. Safe for concurrent use; each Process call is independent.
type Pipeline struct {
	cards    storage.CardRepository
	chunks   storage.ChunkRepository
	acquirer acquire.Acquirer
	embedder ai.Embedder
	splitter *chunker.Chunker

	// dimensions is the required embedding vector length.
	dimensions int

	// persistAttempts and persistDelay bound the chunk persistence retry.
	persistAttempts int
	persistDelay    time.Duration

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunking sets the chunking parameters.
// Default is chunker.DefaultConfig().
func WithChunking(cfg chunker.Config) Option {
	return func(p *Pipeline) error {
		splitter, err := chunker.New(cfg)
		if err != nil {
			return err
		}
		p.splitter = splitter
		return nil
	}
}

// WithDimensions sets the required embedding vector length.
// Default is 384.
func WithDimensions(dimensions int) Option {
	return func(p *Pipeline) error {
		if dimensions <= 0 {
			return core.ErrVectorDimension
		}
		p.dimensions = dimensions
		return nil
	}
}

// WithPersistRetry bounds the chunk persistence retry.
// Default is 2 attempts with a 500ms delay.
func WithPersistRetry(attempts int, delay time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.persistAttempts = attempts
		p.persistDelay = delay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a card processing pipeline.
func NewPipeline(
	cards storage.CardRepository,
	chunks storage.ChunkRepository,
	acquirer acquire.Acquirer,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if cards == nil {
		return nil, ErrCardRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if acquirer == nil {
		return nil, ErrAcquirerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	splitter, err := chunker.New(chunker.DefaultConfig())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cards:           cards,
		chunks:          chunks,
		acquirer:        acquirer,
		embedder:        embedder,
		splitter:        splitter,
		dimensions:      384,
		persistAttempts: 2,
		persistDelay:    500 * time.Millisecond,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			return nil, optErr
		}
	}

	return p, nil
}

// Process runs a card through the full pipeline. On failure the card is
// marked Failed with the error message before the error is returned, so
// the card's state reflects the failure regardless of what the queue does
// with the job next.
func (p *Pipeline) Process(ctx context.Context, cardId core.ID) error {
	card, err := p.cards.GetCard(ctx, cardId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Nothing to record the failure on.
			return fmt.Errorf("%w: %s", ErrCardNotFound, cardId)
		}
		return err
	}

	p.logger.Info("processing card", "card_id", card.Id, "type", card.Type)

	// Mark processing immediately so observers see the card is in flight.
	if _, err := p.cards.SetCardStatus(ctx, card.Id, core.CardStatusProcessing, card.Content, ""); err != nil {
		return err
	}

	content, err := p.acquirer.Acquire(ctx, card.Type, card.Source)
	if err != nil {
		return p.fail(ctx, card.Id, err)
	}

	texts := p.splitter.Split(content)
	if len(texts) == 0 {
		return p.fail(ctx, card.Id, fmt.Errorf("%w for %s card", ErrNoContent, card.Type))
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return p.fail(ctx, card.Id, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err))
	}
	if len(vectors) != len(texts) {
		return p.fail(ctx, card.Id, fmt.Errorf("%w: got %d vectors for %d chunks",
			ErrEmbeddingFailed, len(vectors), len(texts)))
	}

	cardChunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		if len(vectors[i]) != p.dimensions {
			return p.fail(ctx, card.Id, fmt.Errorf("%w: chunk %d has dimension %d, want %d",
				ErrEmbeddingFailed, i, len(vectors[i]), p.dimensions))
		}
		// Content-derived IDs keep chunk identity stable across
		// reprocessing of the same source.
		cardChunks[i] = &core.Chunk{
			Id:     core.IDFromContent(text),
			CardId: card.Id,
			Seq:    i,
			Text:   text,
			Vector: vectors[i],
		}
	}

	result, err := Retry(ctx, func() error {
		if err := p.chunks.ReplaceChunks(ctx, card.Id, cardChunks); err != nil {
			return err
		}
		_, err := p.cards.SetCardStatus(ctx, card.Id, core.CardStatusCompleted, content, "")
		return err
	}, p.persistAttempts, p.persistDelay)
	if err != nil {
		return p.fail(ctx, card.Id, fmt.Errorf("%w after %d attempts: %w",
			ErrPersistenceFailed, result.Attempts, err))
	}

	p.logger.Info("card completed", "card_id", card.Id, "chunks", len(cardChunks))
	return nil
}

// fail records the failure on the card, then returns the cause. Recording
// happens first so the card's error message survives even if the queue
// drops or dead-letters the job.
func (p *Pipeline) fail(ctx context.Context, cardId core.ID, cause error) error {
	p.logger.Warn("card processing failed", "card_id", cardId, "err", cause)

	if _, err := p.cards.SetCardStatus(ctx, cardId, core.CardStatusFailed, "", cause.Error()); err != nil {
		p.logger.Error("failed to record card failure", "card_id", cardId, "err", err)
	}
	return cause
}
