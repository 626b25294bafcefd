package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a unique identifier for domain entities.
// Card identifiers are random UUIDs; chunk identifiers are derived from
// content so re-chunking identical text produces identical IDs.
type ID string

// NewID returns a new random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b
// hashing. This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(fmt.Sprintf("%016x", binary.LittleEndian.Uint64(sum)))
}

// CardType identifies the kind of source a card carries.
type CardType int

const (
	// CardTypeText is inline text; the source is the content itself.
	CardTypeText CardType = iota + 1
	// CardTypeURL is a web page fetched through the crawler service.
	CardTypeURL
	// CardTypePDF is a PDF document. Not yet supported by acquisition.
	CardTypePDF
	// CardTypeYouTube is a video whose audio track is transcribed.
	CardTypeYouTube
	// CardTypeSpotify is a podcast episode. Not yet supported by acquisition.
	CardTypeSpotify
	// CardTypeTweet is a tweet fetched through the crawler service.
	CardTypeTweet
)

// String returns the wire name of the card type.
func (t CardType) String() string {
	switch t {
	case CardTypeText:
		return "text"
	case CardTypeURL:
		return "url"
	case CardTypePDF:
		return "pdf"
	case CardTypeYouTube:
		return "youtube"
	case CardTypeSpotify:
		return "spotify"
	case CardTypeTweet:
		return "tweet"
	default:
		return fmt.Sprintf("cardtype(%d)", int(t))
	}
}

// ParseCardType parses a wire name into a CardType.
func ParseCardType(s string) (CardType, error) {
	switch s {
	case "text":
		return CardTypeText, nil
	case "url":
		return CardTypeURL, nil
	case "pdf":
		return CardTypePDF, nil
	case "youtube":
		return CardTypeYouTube, nil
	case "spotify":
		return CardTypeSpotify, nil
	case "tweet":
		return CardTypeTweet, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCardType, s)
	}
}

// CardStatus tracks a card through the ingestion state machine.
type CardStatus int

const (
	// CardStatusPending means the card is created but not yet picked up.
	CardStatusPending CardStatus = iota + 1
	// CardStatusProcessing means a worker is running the pipeline.
	CardStatusProcessing
	// CardStatusCompleted means ingestion succeeded and chunks are stored.
	CardStatusCompleted
	// CardStatusFailed means the last attempt ended with a recorded error.
	CardStatusFailed
)

// String returns the wire name of the card status.
func (s CardStatus) String() string {
	switch s {
	case CardStatusPending:
		return "pending"
	case CardStatusProcessing:
		return "processing"
	case CardStatusCompleted:
		return "completed"
	case CardStatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("cardstatus(%d)", int(s))
	}
}

// CanTransitionTo reports whether moving from s to next is a legal status
// transition. Status is monotonic within an attempt; a failed card may be
// re-entered for manual reprocessing, a completed card is terminal.
func (s CardStatus) CanTransitionTo(next CardStatus) bool {
	switch s {
	case CardStatusPending:
		return next == CardStatusProcessing
	case CardStatusProcessing:
		return next == CardStatusCompleted || next == CardStatusFailed
	case CardStatusFailed:
		return next == CardStatusProcessing
	case CardStatusCompleted:
		return false
	default:
		return false
	}
}

// Card is a unit of user-supplied content to be ingested and made searchable.
type Card struct {
	Id           ID
	Type         CardType
	Source       string
	Title        string
	Status       CardStatus
	Content      string // Resolved text (populated on successful ingestion)
	ErrorMessage string // Last ingestion error (populated on failure)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chunk is a bounded segment of a card's resolved text together with its
// embedding vector.
type Chunk struct {
	Id     ID
	CardId ID
	Seq    int // Position within the card's chunk sequence
	Text   string
	Vector []float32
}

// Job is a queued unit of work identifying one card to be processed.
type Job struct {
	CardId ID
}

// SearchResult pairs a chunk with its relevance score.
type SearchResult struct {
	Chunk *Chunk
	Score float32
}
