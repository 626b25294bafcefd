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


package cardpile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loopwork/cardpile/acquire"
	"github.com/loopwork/cardpile/ai"
	"github.com/loopwork/cardpile/ai/openai"
	"github.com/loopwork/cardpile/core"
	"github.com/loopwork/cardpile/ingestion"
	"github.com/loopwork/cardpile/queue"
	"github.com/loopwork/cardpile/search"
	"github.com/loopwork/cardpile/storage"
	"github.com/loopwork/cardpile/storage/badger"
)

// Service wires the storage backend, job queue, embedder and acquisition
// clients into one handle. Everything shares a single BadgerDB directory.
type Service struct {
	backend   *badger.Backend
	cardRepo  storage.CardRepository
	chunkRepo storage.ChunkRepository
	jobs      *queue.Queue
	embedder  ai.Embedder
	acquirer  acquire.Acquirer
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig        *ai.Config
	queueConfig     queue.Config
	crawlerHost     string
	transcriberHost string
	transcriberKey  string
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithQueueConfig sets the job queue configuration.
func WithQueueConfig(cfg queue.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.queueConfig = cfg
	}
}

// WithCrawlerHost sets the crawler service base URL.
func WithCrawlerHost(host string) ServiceOption {
	return func(o *serviceOptions) {
		o.crawlerHost = host
	}
}

// WithTranscriberHost sets the transcription service base URL and API key.
func WithTranscriberHost(host, apiKey string) ServiceOption {
	return func(o *serviceOptions) {
		o.transcriberHost = host
		o.transcriberKey = apiKey
	}
}

// NewService opens the database at filePath and builds the service.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig:        ai.DefaultConfig(),
		crawlerHost:     "http://localhost:3005",
		transcriberHost: "https://api.assemblyai.com",
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	cardRepo, err := badger.NewCardRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		cardRepo.Close()
		backend.Close()
		return nil, err
	}

	jobs, err := queue.New(backend, options.queueConfig)
	if err != nil {
		chunkRepo.Close()
		cardRepo.Close()
		backend.Close()
		return nil, err
	}

	embedder, err := openai.NewEmbedder(options.aiConfig)
	if err != nil {
		chunkRepo.Close()
		cardRepo.Close()
		backend.Close()
		return nil, err
	}

	acquirer := acquire.NewResolver(
		acquire.NewCrawlerClient(options.crawlerHost),
		acquire.NewTranscriber(options.transcriberHost,
			acquire.WithAPIKey(options.transcriberKey)),
	)

	return &Service{
		backend:   backend,
		cardRepo:  cardRepo,
		chunkRepo: chunkRepo,
		jobs:      jobs,
		embedder:  embedder,
		acquirer:  acquirer,
		logger:    slog.Default(),
	}, nil
}

// Close releases all resources.
func (s *Service) Close() error {
	if err := s.chunkRepo.Close(); err != nil {
		s.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := s.cardRepo.Close(); err != nil {
		s.logger.Error("error closing card repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// CardRepository returns the card repository.
func (s *Service) CardRepository() storage.CardRepository {
	return s.cardRepo
}

// ChunkRepository returns the chunk repository.
func (s *Service) ChunkRepository() storage.ChunkRepository {
	return s.chunkRepo
}

// Queue returns the card processing job queue.
func (s *Service) Queue() *queue.Queue {
	return s.jobs
}

// AddCard stores a new pending card and enqueues its processing job.
func (s *Service) AddCard(ctx context.Context, cardType core.CardType, source, title string) (*core.Card, error) {
	card, err := s.cardRepo.AddCard(ctx, &core.Card{
		Type:   cardType,
		Source: source,
		Title:  title,
		Status: core.CardStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := s.jobs.Enqueue(ctx, core.Job{CardId: card.Id}); err != nil {
		// The card stays pending; a later retry can pick it up.
		return card, fmt.Errorf("card stored but job not enqueued: %w", err)
	}

	s.logger.Info("card added", "card_id", card.Id, "type", cardType)
	return card, nil
}

// RetryCard re-enqueues a processing job for a failed card.
// Completed cards are refused; reprocessing them would only redo work.
func (s *Service) RetryCard(ctx context.Context, cardId core.ID) error {
	card, err := s.cardRepo.GetCard(ctx, cardId)
	if err != nil {
		return err
	}

	if card.Status == core.CardStatusCompleted {
		return fmt.Errorf("%w: card %s is already completed", core.ErrInvalidTransition, cardId)
	}

	if err := s.jobs.Enqueue(ctx, core.Job{CardId: card.Id}); err != nil {
		return err
	}

	s.logger.Info("card re-enqueued", "card_id", card.Id, "status", card.Status)
	return nil
}

// NewIngestionPipeline builds a processing pipeline over this service's
// repositories.
func (s *Service) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(s.cardRepo, s.chunkRepo, s.acquirer, s.embedder, opts...)
}

// NewWorker builds a queue consumer running the given pipeline options.
func (s *Service) NewWorker(pipelineOpts []ingestion.Option, workerOpts ...ingestion.WorkerOption) (*ingestion.Worker, error) {
	pipeline, err := s.NewIngestionPipeline(pipelineOpts...)
	if err != nil {
		return nil, err
	}
	return ingestion.NewWorker(s.jobs, pipeline, workerOpts...)
}

// NewSearcher builds a searcher over this service's chunks.
func (s *Service) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(s.chunkRepo, s.embedder, opts...)
}
