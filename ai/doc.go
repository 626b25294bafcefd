// Package ai defines the embedding abstraction for cardpile.
//
// The ingestion pipeline and search layer depend only on the Embedder
// interface; concrete implementations live in subpackages:
//
//   - ai/openai: OpenAI-compatible embedding APIs (Ollama, LocalAI, vLLM)
//   - ai/mock: deterministic test double
//
// Vector dimensionality is fixed by configuration. Implementations must
// return vectors of exactly Config.Dimensions, and callers are expected to
// reject anything else before persisting.
package ai
