package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ambisinistra/obsidian-rag/internal/hasher"
)

var (
	// ErrStore wraps every connectivity, query and constraint failure.
	// An indexing pass aborts on it; a search surfaces it as-is.
	ErrStore = errors.New("store error")
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch is returned when a vector does not match the dimension the index was built with
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidChunk is returned for chunks with blank text or no embedding
	ErrInvalidChunk = errors.New("invalid chunk")
)

// Backend names
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Store persists documents and their embedded chunks and answers nearest-neighbor queries.
// Every method acquires its own connection and releases it before returning.
type Store interface {
	// Initialize creates or migrates the schema. Safe to call repeatedly.
	Initialize(ctx context.Context) error

	// NeedsReindex reports whether path is unknown, has a different fingerprint,
	// or is known but owns no chunks.
	NeedsReindex(ctx context.Context, path string, fp hasher.Fingerprint) (bool, error)

	// UpsertDocument inserts or updates the document at path and deletes all chunks
	// it owned, in one transaction. It returns the document ID.
	UpsertDocument(ctx context.Context, path string, fp hasher.Fingerprint) (int64, error)

	// InsertChunks writes each chunk independently; a failure leaves earlier chunks in place.
	InsertChunks(ctx context.Context, documentID int64, chunks []NewChunk) error

	// Nearest returns up to limit chunks by ascending Euclidean distance to vector
	Nearest(ctx context.Context, vector []float32, limit int) ([]Neighbor, error)

	// EnsureEmbeddingSpace records the embedding model and dimension on first use
	// and rejects a different dimension afterwards.
	EnsureEmbeddingSpace(ctx context.Context, model string, dimension int) error

	// ClearAll deletes every chunk, then every document, and resets ID sequences.
	ClearAll(ctx context.Context) error

	GetDocument(ctx context.Context, path string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, path string) error
	ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error)

	Status(ctx context.Context) (*Status, error)
	Close() error
}

// Document is one indexed source file
type Document struct {
	ID            int64
	FilePath      string // relative to the vault root, forward slashes
	FileHash      hasher.Fingerprint
	LastIndexedAt time.Time
	ChunkCount    int
}

// NewChunk is a chunk ready to be written
type NewChunk struct {
	Text      string
	Metadata  []byte // JSON, opaque to the store
	Embedding []float32
}

// Chunk is a stored chunk
type Chunk struct {
	ID         int64
	DocumentID int64
	Text       string
	Metadata   []byte
	Embedding  []float32
}

// Neighbor is a chunk returned by a similarity query
type Neighbor struct {
	ChunkID    int64
	DocumentID int64
	Text       string
	Metadata   []byte
	FilePath   string
	Distance   float64
}

// EmbeddingSpace identifies the model a store's vectors came from
type EmbeddingSpace struct {
	Model     string
	Dimension int
}

// Status contains statistics about the index
type Status struct {
	Backend       string
	BuildMode     string
	Documents     int
	Chunks        int
	Embedding     EmbeddingSpace
	LastIndexedAt time.Time // zero when nothing has been indexed
	SchemaVersion string
}

// storeErr wraps err as ErrStore unless it already carries a more specific sentinel
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDimensionMismatch) || errors.Is(err, ErrInvalidChunk) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func validateChunk(c NewChunk, dimension int) error {
	if isBlank(c.Text) {
		return fmt.Errorf("%w: empty text", ErrInvalidChunk)
	}
	if len(c.Embedding) == 0 {
		return fmt.Errorf("%w: missing embedding", ErrInvalidChunk)
	}
	if dimension > 0 && len(c.Embedding) != dimension {
		return fmt.Errorf("%w: index uses %d, chunk has %d", ErrDimensionMismatch, dimension, len(c.Embedding))
	}
	return nil
}

func checkSpace(stored EmbeddingSpace, dimension int) error {
	if stored.Dimension > 0 && stored.Dimension != dimension {
		return fmt.Errorf("%w: index built with %s (%d), configured model produces %d",
			ErrDimensionMismatch, stored.Model, stored.Dimension, dimension)
	}
	return nil
}

func metadataOrEmpty(m []byte) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	return m
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
