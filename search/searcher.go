package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/loopwork/cardpile/ai"
	"github.com/loopwork/cardpile/core"
	"github.com/loopwork/cardpile/ingestion"
	"github.com/loopwork/cardpile/storage"
)

// contextSeparator joins chunk texts when assembling retrieval context.
const contextSeparator = "\n\n---\n\n"

// Searcher provides semantic search over card chunks.
type Searcher struct {
	chunkRepository storage.ChunkRepository
	embedder        ai.Embedder

	// minSimilarity filters out weak vector matches.
	minSimilarity float32

	// fetchAttempts and fetchDelay bound the context fetch retry.
	fetchAttempts int
	fetchDelay    time.Duration

	logger *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the similarity floor for vector matches.
// Default is 0.60.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = min
		return nil
	}
}

// WithFetchRetry bounds the context fetch retry.
// Default is 2 attempts with a 500ms delay.
func WithFetchRetry(attempts int, delay time.Duration) Option {
	return func(s *Searcher) error {
		if attempts <= 0 {
			return ingestion.ErrInvalidMaxAttempts
		}
		s.fetchAttempts = attempts
		s.fetchDelay = delay
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	chunkRepository storage.ChunkRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		chunkRepository: chunkRepository,
		embedder:        embedder,
		minSimilarity:   0.60,
		fetchAttempts:   2,
		fetchDelay:      500 * time.Millisecond,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for chunks similar to the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.chunkRepository.FindSimilar(ctx, embedding, s.minSimilarity, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	// Apply verbatim match boost on top of vector similarity
	for _, match := range matches {
		if containsAllQueryWords(match.Chunk.Text, query) {
			match.Score += 0.3
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxHits {
		matches = matches[:maxHits]
	}

	return matches, nil
}

// Context is retrieval context assembled from the best-matching chunks.
type Context struct {
	// Text is the matched chunk texts joined with a separator.
	Text string

	// CardIds lists the cards the matched chunks came from, deduplicated,
	// in result order.
	CardIds []core.ID
}

// FetchContext embeds the query and assembles context from the top
// maxHits chunks. The whole fetch is retried once on failure, since a
// momentarily unavailable embedding service shouldn't sink the request.
func (s *Searcher) FetchContext(ctx context.Context, query string, maxHits int) (*Context, error) {
	var results []*core.SearchResult

	_, err := ingestion.Retry(ctx, func() error {
		var err error
		results, err = s.FindSimilar(ctx, query, maxHits)
		return err
	}, s.fetchAttempts, s.fetchDelay)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(results))
	cardIds := make([]core.ID, 0, len(results))
	seen := make(map[core.ID]bool)

	for _, result := range results {
		texts = append(texts, result.Chunk.Text)
		if !seen[result.Chunk.CardId] {
			seen[result.Chunk.CardId] = true
			cardIds = append(cardIds, result.Chunk.CardId)
		}
	}

	return &Context{
		Text:    strings.Join(texts, contextSeparator),
		CardIds: cardIds,
	}, nil
}
