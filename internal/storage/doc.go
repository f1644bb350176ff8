// Package storage persists indexed notes and answers nearest-neighbor queries.
//
// Two tables carry the index:
//   - source_documents: one row per note (relative path, SHA-256 fingerprint, last indexed time)
//   - document_chunks: the embedded segments of a note, deleted with their document
//
// index_meta records the embedding model and dimension the index was built
// with, and schema_version tracks applied migrations (semantic versions).
//
// # Backends
//
// SQLiteStore is the default. Without build tags it uses the pure Go driver
// modernc.org/sqlite and ranks vectors in Go. Built with -tags sqlite_vec it
// switches to github.com/mattn/go-sqlite3 and lets the sqlite-vec extension
// compute vec_distance_l2 in SQL.
//
// PostgresStore targets PostgreSQL with pgvector: embeddings live in a
// VECTOR(d) column and results are ordered by the <-> (L2) operator.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore("index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//	if err := store.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	if needs, _ := store.NeedsReindex(ctx, "daily/2024-01-01.md", fp); needs {
//	    id, err := store.UpsertDocument(ctx, "daily/2024-01-01.md", fp)
//	    // ... embed segments ...
//	    err = store.InsertChunks(ctx, id, []storage.NewChunk{{Text: text, Metadata: meta, Embedding: vec}})
//	}
//
//	neighbors, err := store.Nearest(ctx, queryVec, 5)
//
// # Replace on change
//
// UpsertDocument updates the fingerprint and deletes every chunk the document
// owned inside one transaction, so a changed note never mixes old and new
// chunks. Chunks are inserted afterwards one by one, outside that transaction.
// A document left with a fingerprint but no chunks (a crash, or every
// segment failing to embed) still reports NeedsReindex == true.
//
// # Connections
//
// Each method acquires a connection for the duration of the call and
// releases it on every exit path: a *sql.Conn from the single-connection
// SQLite pool, or a pgxpool connection for PostgreSQL.
//
// # Errors
//
// Driver and constraint failures are wrapped in ErrStore. ErrNotFound,
// ErrDimensionMismatch and ErrInvalidChunk are returned unwrapped so callers
// can tell a missing row or a misconfigured model from a broken database.
package storage
