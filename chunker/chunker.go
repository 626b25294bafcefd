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


package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidChunking is returned when chunking parameters are unusable.
var ErrInvalidChunking = errors.New("invalid chunking configuration")

// Config holds chunking parameters. Sizes are in runes, not bytes, so
// multibyte text never gets cut mid-character.
type Config struct {
	// ChunkSize is the maximum chunk length.
	ChunkSize int

	// ChunkOverlap is how many trailing runes of a chunk are repeated at
	// the start of the next one.
	ChunkOverlap int
}

// DefaultConfig returns the standard chunking parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    750,
		ChunkOverlap: 75,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidChunking)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative", ErrInvalidChunking)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrInvalidChunking)
	}
	return nil
}

// Chunker splits text into overlapping chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker with the given configuration.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Split divides text into chunks. Returns nil for empty input. The final
// chunk may be shorter than ChunkSize; all others are at most ChunkSize
// runes and each chunk after the first starts with exactly the last
// ChunkOverlap runes of the previous one.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.cfg.ChunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for {
		end := start + c.cfg.ChunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}

		// A cut strictly after start+overlap guarantees the next chunk
		// starts past the current one.
		cut := c.findCut(runes, start+c.cfg.ChunkOverlap, end)

		chunks = append(chunks, string(runes[start:cut]))
		start = cut - c.cfg.ChunkOverlap
	}
}

// findCut picks the cut position in (min, max]. Prefers a paragraph break,
// then a sentence end, then a word boundary, scanning backward from max.
// Falls back to max itself when the window has no boundary at all.
func (c *Chunker) findCut(runes []rune, min, max int) int {
	if cut := findParagraphCut(runes, min, max); cut > 0 {
		return cut
	}
	if cut := findSentenceCut(runes, min, max); cut > 0 {
		return cut
	}
	if cut := findWordCut(runes, min, max); cut > 0 {
		return cut
	}
	return max
}

// findParagraphCut returns the position just after the last blank line in
// (min, max], or 0 when there is none.
func findParagraphCut(runes []rune, min, max int) int {
	for i := max; i > min+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	return 0
}

// findSentenceCut returns the position just after the last sentence
// terminator in (min, max], or 0 when there is none. A terminator is
// '.', '!' or '?' followed by whitespace, or a lone newline.
func findSentenceCut(runes []rune, min, max int) int {
	for i := max; i > min; i-- {
		prev := runes[i-1]
		if prev == '\n' {
			return i
		}
		if i < len(runes) && isSentenceEnd(prev) && isSpace(runes[i]) {
			return i
		}
	}
	return 0
}

// findWordCut returns the position just after the last space in (min, max],
// or 0 when there is none.
func findWordCut(runes []rune, min, max int) int {
	for i := max; i > min; i-- {
		if isSpace(runes[i-1]) {
			return i
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
