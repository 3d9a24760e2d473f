// Package embeddings turns text into vectors for the shared index.
//
// Providers (TEI, OpenAI, Ollama, FastEmbed) are selected at runtime by
// NewProvider. Callers never talk to a provider directly: the Gateway wraps
// one with input validation, rate limiting, a bounded retry policy, dimension
// checks and metrics, and reports every provider failure as
// ErrEmbeddingUnavailable.
package embeddings
