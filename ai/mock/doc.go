// Package mock provides a deterministic test double for the ai.Embedder
// interface. The default behavior derives unit vectors from a hash of the
// input text, so identical texts always embed identically without any
// network dependency.
package mock
