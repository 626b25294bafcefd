package chunker

import (
	"strings"
	"testing"
)

func mustChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create chunker: %v", err)
	}
	return c
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero size", Config{ChunkSize: 0, ChunkOverlap: 0}, true},
		{"negative overlap", Config{ChunkSize: 100, ChunkOverlap: -1}, true},
		{"overlap equals size", Config{ChunkSize: 100, ChunkOverlap: 100}, true},
		{"overlap exceeds size", Config{ChunkSize: 100, ChunkOverlap: 150}, true},
		{"zero overlap ok", Config{ChunkSize: 100, ChunkOverlap: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	c := mustChunker(t, DefaultConfig())
	if chunks := c.Split(""); chunks != nil {
		t.Fatalf("Expected nil for empty input, got %v", chunks)
	}
}

func TestSplitShortInput(t *testing.T) {
	c := mustChunker(t, DefaultConfig())
	chunks := c.Split("a short note")
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "a short note" {
		t.Fatalf("Expected input unchanged, got %q", chunks[0])
	}
}

func TestSplitUnbrokenText(t *testing.T) {
	c := mustChunker(t, DefaultConfig())
	chunks := c.Split(strings.Repeat("A", 2000))

	// 750-rune window with 75-rune overlap over 2000 runes:
	// [0,750) [675,1425) [1350,2000)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 750 || len(chunks[1]) != 750 {
		t.Fatalf("Expected full chunks of 750, got %d and %d", len(chunks[0]), len(chunks[1]))
	}
	if len(chunks[2]) != 650 {
		t.Fatalf("Expected final chunk of 650, got %d", len(chunks[2]))
	}
}

func TestSplitOverlapExact(t *testing.T) {
	cfg := Config{ChunkSize: 100, ChunkOverlap: 20}
	c := mustChunker(t, cfg)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 30)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		tail := string(prev[len(prev)-cfg.ChunkOverlap:])
		head := string(cur[:cfg.ChunkOverlap])
		if tail != head {
			t.Fatalf("Chunk %d head %q does not match previous tail %q", i, head, tail)
		}
	}
}

func TestSplitRespectsMaxSize(t *testing.T) {
	cfg := Config{ChunkSize: 80, ChunkOverlap: 10}
	c := mustChunker(t, cfg)

	text := strings.Repeat("some words separated by spaces here. ", 50)
	for i, chunk := range c.Split(text) {
		if n := len([]rune(chunk)); n > cfg.ChunkSize {
			t.Fatalf("Chunk %d has %d runes, exceeds max %d", i, n, cfg.ChunkSize)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := mustChunker(t, DefaultConfig())
	text := strings.Repeat("Sentences end here. More words follow after that.\n\n", 40)

	first := c.Split(text)
	second := c.Split(text)

	if len(first) != len(second) {
		t.Fatalf("Chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Chunk %d differs between runs", i)
		}
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	cfg := Config{ChunkSize: 100, ChunkOverlap: 10}
	c := mustChunker(t, cfg)

	// Paragraph break sits inside the first window, past the overlap point
	text := strings.Repeat("x", 60) + "\n\n" + strings.Repeat("y", 100)
	chunks := c.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Fatalf("Expected first chunk to end at paragraph break, got %q", chunks[0])
	}
}

func TestSplitMultibyteRunes(t *testing.T) {
	cfg := Config{ChunkSize: 50, ChunkOverlap: 5}
	c := mustChunker(t, cfg)

	text := strings.Repeat("日本語のテキスト", 30)
	for i, chunk := range c.Split(text) {
		if n := len([]rune(chunk)); n > cfg.ChunkSize {
			t.Fatalf("Chunk %d has %d runes, exceeds max %d", i, n, cfg.ChunkSize)
		}
		// Chunks must remain valid UTF-8 sequences of whole runes
		if strings.ContainsRune(chunk, '�') {
			t.Fatalf("Chunk %d contains replacement character", i)
		}
	}
}
