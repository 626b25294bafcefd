// Package chunker splits card content into overlapping text chunks for
// embedding.
//
// Splitting is deterministic: the same input and configuration always
// produce the same chunks. Each chunk is at most ChunkSize runes long, and
// every chunk after the first begins with exactly the last ChunkOverlap
// runes of its predecessor, so context is never lost at a chunk boundary.
//
// Cut points prefer natural boundaries. Within the chunk window the
// splitter looks for, in order: a paragraph break, a sentence end, a word
// boundary. When none exists (one long unbroken token) it cuts at exactly
// ChunkSize runes.
package chunker
