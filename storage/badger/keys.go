package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/loopwork/cardpile/core"
)

// Key prefixes for different data types
const (
	cardPrefix     = "card"
	cardDatePrefix = "cardd"
	chunkPrefix    = "chunk"
)

// makeCardKey generates a key for a card by ID.
func makeCardKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s", cardPrefix, id))
}

// makeCardDateKey generates a composite key for the creation-date index.
// Format: prefix:timestamp:id
func makeCardDateKey(createdAt time.Time, id core.ID) []byte {
	prefix := cardDatePrefix + ":"
	prefixBytes := []byte(prefix)
	totalSize := len(prefixBytes) + 8 + len(id)
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], []byte(id))
	return buf
}

// makeChunkKey generates a composite key for a chunk of a card.
// Format: prefix:cardID:seq
func makeChunkKey(cardId core.ID, seq int) []byte {
	prefix := fmt.Sprintf("%s:%s:", chunkPrefix, cardId)
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	// BigEndian seq keeps chunks iterable in order
	binary.BigEndian.PutUint64(buf[offset:], uint64(seq))
	return buf
}

// makeCardChunkPrefix generates the key prefix covering all chunks of a card.
func makeCardChunkPrefix(cardId core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:", chunkPrefix, cardId))
}
