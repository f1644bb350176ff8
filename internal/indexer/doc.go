// Package indexer keeps a vector index in step with a directory of notes.
//
// # Basic Usage
//
//	idx := indexer.New(store, client, indexer.WithLogger(logger))
//
//	stats, err := idx.IndexAll(ctx, indexer.Config{
//	    Root:         "./second_brain",
//	    Patterns:     []string{"*.md"},
//	    PruneMissing: true,
//	})
//	fmt.Println(stats.Summary())
//
// # Pipeline
//
// Every matching file goes through the same steps, one file at a time:
//
//  1. Fingerprint: streaming SHA-256 of the raw bytes
//  2. Decide: skip when the store already has this fingerprint (state "unchanged")
//  3. Chunk: split on #, ## and ### headings; no segments means state "empty"
//  4. Persist document: upsert, which drops every chunk the document owned
//  5. Embed and persist chunks: one embedding call and one insert per segment
//
// A segment whose embedding fails is recorded in its ChunkOutcome and
// skipped; the document still ends "indexed". Running the pass twice over an
// unchanged tree performs no writes the second time.
//
// # Failures
//
//   - unreadable file (I/O or invalid UTF-8): ErrUnreadableDocument, file skipped
//   - embedding service failure: chunk skipped, pass continues
//   - store failure or embedding dimension mismatch: pass aborted and returned
//
// # Cancellation
//
// The context is checked before each document. Work on a document that has
// already started runs to completion so the replace-on-change step is never
// left half done by a cancel.
//
// # Concurrency
//
// Indexer itself is sequential. Callers that may start passes from several
// goroutines (an MCP tool and a file watcher, for example) share an IndexLock.
package indexer
