package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/ambisinistra/obsidian-rag/internal/hasher"
)

// PostgresStore implements Store on PostgreSQL with the pgvector extension.
// Every operation acquires a pooled connection and releases it on return.
type PostgresStore struct {
	pool      *pgxpool.Pool
	dimension int
}

var _ Store = (*PostgresStore)(nil)

// PostgresConfig configures a PostgresStore
type PostgresConfig struct {
	DSN       string
	Dimension int // VECTOR(d) column size, required
	MaxConns  int32
}

// NewPostgresStore connects to PostgreSQL. The vector extension is created
// first because the pool registers its types on every new connection.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: postgres store needs a positive embedding dimension", ErrStore)
	}

	if err := ensureVectorExtension(ctx, cfg.DSN); err != nil {
		return nil, storeErr("create vector extension", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, storeErr("parse dsn", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, storeErr("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storeErr("ping", err)
	}

	return &PostgresStore{pool: pool, dimension: cfg.Dimension}, nil
}

func ensureVectorExtension(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	return err
}

// withConn runs fn on a pooled connection scoped to this call
func (p *PostgresStore) withConn(ctx context.Context, op string, fn func(conn *pgxpool.Conn) error) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return storeErr(op, err)
	}
	defer conn.Release()

	return storeErr(op, fn(conn))
}

func (p *PostgresStore) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	return p.withConn(ctx, op, func(conn *pgxpool.Conn) error {
		return pgx.BeginFunc(ctx, conn, fn)
	})
}

func postgresMigrations(dimension int) []Migration {
	return []Migration{
		{
			Version: "1.0.0",
			Up: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS source_documents (
					id SERIAL PRIMARY KEY,
					file_path TEXT NOT NULL UNIQUE,
					file_hash CHAR(64) NOT NULL,
					last_indexed_at TIMESTAMPTZ NOT NULL
				);
				CREATE TABLE IF NOT EXISTS document_chunks (
					id SERIAL PRIMARY KEY,
					source_id INTEGER NOT NULL REFERENCES source_documents(id) ON DELETE CASCADE,
					chunk_text TEXT NOT NULL,
					embedding VECTOR(%d) NOT NULL,
					metadata JSONB NOT NULL DEFAULT '{}'
				);
				CREATE INDEX IF NOT EXISTS idx_document_chunks_source ON document_chunks(source_id);
			`, dimension),
		},
		{
			Version: "1.1.0",
			Up: `
				CREATE TABLE IF NOT EXISTS index_meta (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_source_documents_indexed ON source_documents(last_indexed_at);
			`,
		},
	}
}

// Initialize creates the schema and applies pending migrations
func (p *PostgresStore) Initialize(ctx context.Context) error {
	return p.withConn(ctx, "initialize", func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS schema_version (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`); err != nil {
			return err
		}

		current, err := p.schemaVersion(ctx, conn)
		if err != nil {
			return err
		}
		pending, err := pendingMigrations(semver.MustParse(current), postgresMigrations(p.dimension))
		if err != nil {
			return err
		}
		for _, m := range pending {
			if _, err := conn.Exec(ctx, m.Up); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
			}
			if _, err := conn.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", m.Version); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
			}
		}

		space, err := readPgSpace(ctx, conn)
		if err != nil {
			return err
		}
		return checkSpace(space, p.dimension)
	})
}

func (p *PostgresStore) schemaVersion(ctx context.Context, conn *pgxpool.Conn) (string, error) {
	rows, err := conn.Query(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return "", err
	}
	recorded, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", err
	}
	highest, err := highestVersion(recorded)
	if err != nil {
		return "", err
	}
	return highest.String(), nil
}

// Close closes every pooled connection
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) NeedsReindex(ctx context.Context, path string, fp hasher.Fingerprint) (bool, error) {
	needs := true
	err := p.withConn(ctx, "needs reindex", func(conn *pgxpool.Conn) error {
		var (
			storedHash string
			chunkCount int
		)
		err := conn.QueryRow(ctx, `
			SELECT d.file_hash, (SELECT COUNT(*) FROM document_chunks c WHERE c.source_id = d.id)
			FROM source_documents d
			WHERE d.file_path = $1
		`, path).Scan(&storedHash, &chunkCount)
		if errors.Is(err, pgx.ErrNoRows) {
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

func (p *PostgresStore) UpsertDocument(ctx context.Context, path string, fp hasher.Fingerprint) (int64, error) {
	var id int64
	err := p.withTx(ctx, "upsert document", func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO source_documents (file_path, file_hash, last_indexed_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (file_path) DO UPDATE SET
				file_hash = EXCLUDED.file_hash,
				last_indexed_at = EXCLUDED.last_indexed_at
			RETURNING id
		`, path, fp.String(), time.Now().UTC()).Scan(&id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "DELETE FROM document_chunks WHERE source_id = $1", id)
		return err
	})
	return id, err
}

func (p *PostgresStore) InsertChunks(ctx context.Context, documentID int64, chunks []NewChunk) error {
	return p.withConn(ctx, "insert chunks", func(conn *pgxpool.Conn) error {
		for _, c := range chunks {
			if err := validateChunk(c, p.dimension); err != nil {
				return err
			}
			_, err := conn.Exec(ctx, `
				INSERT INTO document_chunks (source_id, chunk_text, embedding, metadata)
				VALUES ($1, $2, $3, $4)
			`, documentID, c.Text, pgvector.NewVector(c.Embedding), string(metadataOrEmpty(c.Metadata)))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresStore) Nearest(ctx context.Context, vector []float32, limit int) ([]Neighbor, error) {
	if len(vector) != p.dimension {
		return nil, fmt.Errorf("%w: index uses %d, query has %d", ErrDimensionMismatch, p.dimension, len(vector))
	}
	results := []Neighbor{}
	if limit <= 0 {
		return results, nil
	}
	err := p.withConn(ctx, "nearest", func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT c.id, c.source_id, c.chunk_text, c.metadata::text, d.file_path,
				c.embedding <-> $1 AS distance
			FROM document_chunks c
			INNER JOIN source_documents d ON d.id = c.source_id
			ORDER BY distance ASC, c.id ASC
			LIMIT $2
		`, pgvector.NewVector(vector), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				n        Neighbor
				metadata string
			)
			if err := rows.Scan(&n.ChunkID, &n.DocumentID, &n.Text, &metadata, &n.FilePath, &n.Distance); err != nil {
				return err
			}
			n.Metadata = []byte(metadata)
			results = append(results, n)
		}
		return rows.Err()
	})
	return results, err
}

func (p *PostgresStore) EnsureEmbeddingSpace(ctx context.Context, model string, dimension int) error {
	if dimension != p.dimension {
		return fmt.Errorf("%w: column is VECTOR(%d), model %s produces %d", ErrDimensionMismatch, p.dimension, model, dimension)
	}
	return p.withTx(ctx, "ensure embedding space", func(tx pgx.Tx) error {
		space, err := readPgSpace(ctx, tx)
		if err != nil {
			return err
		}
		if space.Dimension > 0 {
			return checkSpace(space, dimension)
		}
		batch := &pgx.Batch{}
		for key, value := range map[string]string{
			metaModel:     model,
			metaDimension: strconv.Itoa(dimension),
		} {
			batch.Queue(`INSERT INTO index_meta (key, value) VALUES ($1, $2)
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func readPgSpace(ctx context.Context, q pgQuerier) (EmbeddingSpace, error) {
	var space EmbeddingSpace
	rows, err := q.Query(ctx, "SELECT key, value FROM index_meta WHERE key IN ($1, $2)", metaModel, metaDimension)
	if err != nil {
		return space, err
	}
	defer rows.Close()

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

// ClearAll deletes chunks, then documents, and restarts both ID sequences
func (p *PostgresStore) ClearAll(ctx context.Context) error {
	return p.withTx(ctx, "clear all", func(tx pgx.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM document_chunks",
			"DELETE FROM source_documents",
			"ALTER SEQUENCE document_chunks_id_seq RESTART WITH 1",
			"ALTER SEQUENCE source_documents_id_seq RESTART WITH 1",
			"DELETE FROM index_meta",
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

const pgDocumentColumns = `
	SELECT d.id, d.file_path, d.file_hash, d.last_indexed_at,
		(SELECT COUNT(*) FROM document_chunks c WHERE c.source_id = d.id)
	FROM source_documents d
`

func (p *PostgresStore) GetDocument(ctx context.Context, path string) (*Document, error) {
	var doc *Document
	err := p.withConn(ctx, "get document", func(conn *pgxpool.Conn) error {
		var err error
		doc, err = scanDocument(conn.QueryRow(ctx, pgDocumentColumns+" WHERE d.file_path = $1", path))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return doc, err
}

func (p *PostgresStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	var docs []*Document
	err := p.withConn(ctx, "list documents", func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, pgDocumentColumns+" ORDER BY d.file_path")
		if err != nil {
			return err
		}
		defer rows.Close()

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

func (p *PostgresStore) DeleteDocument(ctx context.Context, path string) error {
	return p.withConn(ctx, "delete document", func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, "DELETE FROM source_documents WHERE file_path = $1", path)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (p *PostgresStore) ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error) {
	var chunks []*Chunk
	err := p.withConn(ctx, "list chunks", func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, source_id, chunk_text, metadata::text, embedding
			FROM document_chunks
			WHERE source_id = $1
			ORDER BY id
		`, documentID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				c         Chunk
				metadata  string
				embedding pgvector.Vector
			)
			if err := rows.Scan(&c.ID, &c.DocumentID, &c.Text, &metadata, &embedding); err != nil {
				return err
			}
			c.Metadata = []byte(metadata)
			c.Embedding = embedding.Slice()
			chunks = append(chunks, &c)
		}
		return rows.Err()
	})
	return chunks, err
}

func (p *PostgresStore) Status(ctx context.Context) (*Status, error) {
	status := &Status{Backend: BackendPostgres, BuildMode: "pgvector"}
	err := p.withConn(ctx, "status", func(conn *pgxpool.Conn) error {
		var last *time.Time
		err := conn.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM source_documents),
				(SELECT COUNT(*) FROM document_chunks),
				(SELECT MAX(last_indexed_at) FROM source_documents)
		`).Scan(&status.Documents, &status.Chunks, &last)
		if err != nil {
			return err
		}
		if last != nil {
			status.LastIndexedAt = *last
		}

		status.Embedding, err = readPgSpace(ctx, conn)
		if err != nil {
			return err
		}
		status.SchemaVersion, err = p.schemaVersion(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}
