package ingestion

import (
	"errors"

	"github.com/loopwork/cardpile/acquire"
	"github.com/loopwork/cardpile/core"
)

var (
	// ErrCardRepositoryRequired is returned when a card repository is not provided.
	ErrCardRepositoryRequired = errors.New("card repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrAcquirerRequired is returned when an acquirer is not provided.
	ErrAcquirerRequired = errors.New("acquirer required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned for a non-positive retry budget.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrCardNotFound means the job references a card that no longer
	// exists. Permanent.
	ErrCardNotFound = errors.New("card not found")

	// ErrNoContent means acquisition produced nothing to chunk.
	// Permanent: an empty source stays empty across redeliveries.
	ErrNoContent = errors.New("no content acquired")

	// ErrEmbeddingFailed wraps embedding service failures, including
	// vectors of the wrong dimensionality. Transient.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrPersistenceFailed means the chunk set could not be stored even
	// after the bounded retry. Permanent: the failure is recorded on the
	// card and the job is not worth redelivering.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// IsPermanent reports whether retrying the job could possibly succeed.
// Permanent errors are acknowledged to the queue with the failure recorded
// on the card; everything else is failed for redelivery.
func IsPermanent(err error) bool {
	switch {
	case errors.Is(err, ErrCardNotFound),
		errors.Is(err, ErrNoContent),
		errors.Is(err, ErrPersistenceFailed),
		errors.Is(err, acquire.ErrUnsupportedSourceType),
		errors.Is(err, core.ErrEmptySource),
		errors.Is(err, core.ErrInvalidCardType):
		return true
	}
	return false
}
