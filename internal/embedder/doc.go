// Package embedder turns note segments and search queries into unit-length vectors.
//
// A Provider talks to one embedding backend and returns the raw vector:
//
//   - OllamaProvider posts {"model", "prompt"} to {base}/api/embeddings
//   - OpenAIProvider uses any OpenAI-compatible /embeddings endpoint
//   - LocalProvider hashes words into a fixed-size vector, no network needed
//
// Client wraps a Provider and is what the rest of the program uses. It
// rejects blank text, optionally paces requests with a token bucket, caches
// results by content hash and divides every vector by its Euclidean norm.
//
//	client, err := embedder.New(embedder.Config{
//	    Provider:  "ollama",
//	    Model:     "llama3.2:3b",
//	    CacheSize: 1000,
//	}, logger)
//	emb, err := client.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "hello"})
//	// embedder.Norm(emb.Vector) == 1 ± 1e-6
//
// # Errors
//
// Every backend failure (transport, non-200 status, undecodable body, a
// zero-norm vector) is reported as ErrEmbeddingService with the service's
// error text attached. Callers skip the affected chunk. A vector whose length
// differs from the configured or first-seen dimension is ErrDimensionMismatch,
// which is a configuration problem rather than a transient one.
//
// Nothing in this package retries.
package embedder
