package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ambisinistra/obsidian-rag/internal/hasher"
)

const (
	metaModel     = "embedding_model"
	metaDimension = "embedding_dimension"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// One connection: SQLite has a single writer, and ":memory:" databases live per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens the database at dbPath. Call Initialize before use.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStore, err)
	}
	return &SQLiteStore{db: db}, nil
}

// querier is an interface that *sql.DB, *sql.Conn and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withConn runs fn on a connection scoped to this call
func (s *SQLiteStore) withConn(ctx context.Context, op string, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return storeErr(op, err)
	}
	defer func() { _ = conn.Close() }()

	return storeErr(op, fn(conn))
}

// withTx runs fn inside a transaction on a scoped connection
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return s.withConn(ctx, op, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Initialize applies pending migrations
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	return s.withConn(ctx, "initialize", func(conn *sql.Conn) error {
		return ApplyMigrations(ctx, conn)
	})
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) NeedsReindex(ctx context.Context, path string, fp hasher.Fingerprint) (bool, error) {
	needs := true
	err := s.withConn(ctx, "needs reindex", func(conn *sql.Conn) error {
		var (
			storedHash string
			chunkCount int
		)
		err := conn.QueryRowContext(ctx, `
			SELECT d.file_hash, (SELECT COUNT(*) FROM document_chunks c WHERE c.source_id = d.id)
			FROM source_documents d
			WHERE d.file_path = ?
		`, path).Scan(&storedHash, &chunkCount)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		needs = storedHash != fp.String() || chunkCount == 0
		return nil
	})
	return needs, err
}

func (s *SQLiteStore) UpsertDocument(ctx context.Context, path string, fp hasher.Fingerprint) (int64, error) {
	var id int64
	err := s.withTx(ctx, "upsert document", func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO source_documents (file_path, file_hash, last_indexed_at)
			VALUES (?, ?, ?)
			ON CONFLICT(file_path) DO UPDATE SET
				file_hash = excluded.file_hash,
				last_indexed_at = excluded.last_indexed_at
			RETURNING id
		`, path, fp.String(), time.Now().UTC()).Scan(&id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE source_id = ?", id)
		return err
	})
	return id, err
}

func (s *SQLiteStore) InsertChunks(ctx context.Context, documentID int64, chunks []NewChunk) error {
	return s.withConn(ctx, "insert chunks", func(conn *sql.Conn) error {
		space, err := readSpace(ctx, conn)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if err := validateChunk(c, space.Dimension); err != nil {
				return err
			}
			_, err := conn.ExecContext(ctx, `
				INSERT INTO document_chunks (source_id, chunk_text, embedding, dimension, metadata)
				VALUES (?, ?, ?, ?, ?)
			`, documentID, c.Text, serializeVector(c.Embedding), len(c.Embedding), string(metadataOrEmpty(c.Metadata)))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Nearest(ctx context.Context, vector []float32, limit int) ([]Neighbor, error) {
	var results []Neighbor
	err := s.withConn(ctx, "nearest", func(conn *sql.Conn) error {
		space, err := readSpace(ctx, conn)
		if err != nil {
			return err
		}
		if space.Dimension > 0 && space.Dimension != len(vector) {
			return fmt.Errorf("%w: index uses %d, query has %d", ErrDimensionMismatch, space.Dimension, len(vector))
		}
		results, err = searchNearest(ctx, conn, vector, limit)
		return err
	})
	return results, err
}

func (s *SQLiteStore) EnsureEmbeddingSpace(ctx context.Context, model string, dimension int) error {
	return s.withTx(ctx, "ensure embedding space", func(tx *sql.Tx) error {
		space, err := readSpace(ctx, tx)
		if err != nil {
			return err
		}
		if space.Dimension > 0 {
			return checkSpace(space, dimension)
		}
		for key, value := range map[string]string{
			metaModel:     model,
			metaDimension: strconv.Itoa(dimension),
		} {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO index_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
				key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func readSpace(ctx context.Context, q querier) (EmbeddingSpace, error) {
	var space EmbeddingSpace
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM index_meta WHERE key IN (?, ?)", metaModel, metaDimension)
	if err != nil {
		return space, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return space, err
		}
		switch key {
		case metaModel:
			space.Model = value
		case metaDimension:
			space.Dimension, err = strconv.Atoi(value)
			if err != nil {
				return space, fmt.Errorf("corrupt %s %q: %w", metaDimension, value, err)
			}
		}
	}
	return space, rows.Err()
}

// ClearAll empties the index and restarts AUTOINCREMENT counters
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	return s.withTx(ctx, "clear all", func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM document_chunks",
			"DELETE FROM source_documents",
			"DELETE FROM sqlite_sequence WHERE name IN ('document_chunks', 'source_documents')",
			"DELETE FROM index_meta",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

const documentColumns = `
	SELECT d.id, d.file_path, d.file_hash, d.last_indexed_at,
		(SELECT COUNT(*) FROM document_chunks c WHERE c.source_id = d.id)
	FROM source_documents d
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc  Document
		hash string
	)
	if err := row.Scan(&doc.ID, &doc.FilePath, &hash, &doc.LastIndexedAt, &doc.ChunkCount); err != nil {
		return nil, err
	}
	fp, err := hasher.Parse(hash)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.FilePath, err)
	}
	doc.FileHash = fp
	return &doc, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, path string) (*Document, error) {
	var doc *Document
	err := s.withConn(ctx, "get document", func(conn *sql.Conn) error {
		var err error
		doc, err = scanDocument(conn.QueryRowContext(ctx, documentColumns+" WHERE d.file_path = ?", path))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return doc, err
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	var docs []*Document
	err := s.withConn(ctx, "list documents", func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, documentColumns+" ORDER BY d.file_path")
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			doc, err := scanDocument(rows)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return rows.Err()
	})
	return docs, err
}

// DeleteDocument removes the document at path; its chunks cascade
func (s *SQLiteStore) DeleteDocument(ctx context.Context, path string) error {
	return s.withConn(ctx, "delete document", func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, "DELETE FROM source_documents WHERE file_path = ?", path)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLiteStore) ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error) {
	var chunks []*Chunk
	err := s.withConn(ctx, "list chunks", func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, source_id, chunk_text, metadata, embedding
			FROM document_chunks
			WHERE source_id = ?
			ORDER BY id
		`, documentID)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				c        Chunk
				metadata string
				blob     []byte
			)
			if err := rows.Scan(&c.ID, &c.DocumentID, &c.Text, &metadata, &blob); err != nil {
				return err
			}
			c.Metadata = []byte(metadata)
			c.Embedding = deserializeVector(blob)
			chunks = append(chunks, &c)
		}
		return rows.Err()
	})
	return chunks, err
}

func (s *SQLiteStore) Status(ctx context.Context) (*Status, error) {
	status := &Status{Backend: BackendSQLite, BuildMode: BuildMode}
	err := s.withConn(ctx, "status", func(conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM source_documents").Scan(&status.Documents); err != nil {
			return err
		}
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM document_chunks").Scan(&status.Chunks); err != nil {
			return err
		}

		// selecting the column itself keeps its declared TIMESTAMP type; MAX() would not
		var last time.Time
		err := conn.QueryRowContext(ctx,
			"SELECT last_indexed_at FROM source_documents ORDER BY last_indexed_at DESC LIMIT 1").Scan(&last)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			status.LastIndexedAt = last
		}

		space, err := readSpace(ctx, conn)
		if err != nil {
			return err
		}
		status.Embedding = space

		status.SchemaVersion, err = SchemaVersion(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}
