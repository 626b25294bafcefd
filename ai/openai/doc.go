// Package openai implements the ai.Embedder interface against
// OpenAI-compatible embedding APIs.
//
// Works with any server exposing the OpenAI embeddings endpoint: Ollama,
// LocalAI, vLLM, or the hosted OpenAI API. Local services that do not
// require authentication are supported with a placeholder token.
package openai
