package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ambisinistra/obsidian-rag/internal/chunker"
	"github.com/ambisinistra/obsidian-rag/internal/document"
	"github.com/ambisinistra/obsidian-rag/internal/embedder"
	"github.com/ambisinistra/obsidian-rag/internal/hasher"
	"github.com/ambisinistra/obsidian-rag/internal/storage"
	"github.com/ambisinistra/obsidian-rag/pkg/types"
)

// ErrUnreadableDocument marks a document skipped because it could not be read or decoded
var ErrUnreadableDocument = errors.New("unreadable document")

// DefaultPattern selects markdown notes
const DefaultPattern = "*.md"

// Indexer coordinates the indexing pipeline: fingerprint -> chunk -> embed -> store.
// Documents and chunks are processed strictly one at a time.
type Indexer struct {
	store    storage.Store
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	reader   document.Reader
	logger   *slog.Logger
}

// Config contains configuration for one indexing pass
type Config struct {
	Root     string   // vault root directory
	Patterns []string // file name globs, default ["*.md"]

	// PruneMissing deletes documents whose files are gone once the pass completes
	PruneMissing bool
}

// Option configures an Indexer
type Option func(*Indexer)

// WithChunker replaces the default markdown splitter
func WithChunker(c *chunker.Chunker) Option {
	return func(idx *Indexer) {
		idx.chunker = c
	}
}

// WithReader replaces the default document reader
func WithReader(r document.Reader) Option {
	return func(idx *Indexer) {
		idx.reader = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// New creates a new Indexer instance
func New(store storage.Store, emb embedder.Embedder, opts ...Option) *Indexer {
	idx := &Indexer{
		store:    store,
		embedder: emb,
		chunker:  chunker.New(),
		reader:   document.Default(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// pass holds the state of one IndexAll call
type pass struct {
	root         string
	logger       *slog.Logger
	stats        *Statistics
	spaceChecked bool
}

// IndexAll runs one full pass over cfg.Root.
//
// Cancellation is checked between documents only; a document that has started
// is finished. Unreadable documents and failed embeddings are recorded and
// skipped. A store error or an embedding dimension mismatch aborts the pass;
// the returned Statistics then cover the documents processed so far.
func (idx *Indexer) IndexAll(ctx context.Context, cfg Config) (*Statistics, error) {
	started := time.Now()
	stats := &Statistics{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	logger := idx.logger.With("run_id", stats.RunID)
	defer func() { stats.Duration = time.Since(started) }()

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return stats, fmt.Errorf("resolve root %s: %w", cfg.Root, err)
	}

	paths, err := discover(root, cfg.Patterns)
	if err != nil {
		return stats, fmt.Errorf("failed to discover documents: %w", err)
	}
	logger.Info("indexing pass started", "root", root, "documents", len(paths))

	p := &pass{root: root, logger: logger, stats: stats}
	seen := make(map[string]struct{}, len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			stats.Cancelled = true
			logger.Info("indexing pass cancelled", "processed", len(stats.Documents), "remaining", len(paths)-len(stats.Documents))
			return stats, err
		}

		outcome, err := idx.indexDocument(context.WithoutCancel(ctx), p, path)
		seen[outcome.Path] = struct{}{}
		stats.record(outcome)
		if err != nil {
			logger.Error("indexing pass aborted", "path", outcome.Path, "error", err)
			return stats, err
		}
	}

	if cfg.PruneMissing {
		if err := idx.prune(ctx, p, seen); err != nil {
			logger.Error("pruning failed", "error", err)
			return stats, err
		}
	}

	logger.Info("indexing pass finished",
		"indexed", stats.Indexed,
		"unchanged", stats.Unchanged,
		"empty", stats.Empty,
		"unreadable", stats.Unreadable,
		"removed", stats.Removed,
		"chunks_created", stats.ChunksCreated,
		"chunks_failed", stats.ChunksFailed,
		"duration", time.Since(started))
	return stats, nil
}

// indexDocument walks one document through the pipeline. Only errors that must
// abort the pass are returned; everything else is reported in the outcome.
func (idx *Indexer) indexDocument(ctx context.Context, p *pass, path string) (DocumentOutcome, error) {
	started := time.Now()
	rel := relativePath(p.root, path)
	outcome := DocumentOutcome{Path: rel}
	defer func() { outcome.Duration = time.Since(started) }()
	logger := p.logger.With("path", rel)

	fp, err := hasher.FromFile(path)
	if err != nil {
		return idx.unreadable(logger, outcome, err), nil
	}
	outcome.Fingerprint = fp

	needs, err := idx.store.NeedsReindex(ctx, rel, fp)
	if err != nil {
		outcome.State, outcome.Err = StateFailed, err
		return outcome, err
	}
	if !needs {
		outcome.State = StateUnchanged
		logger.Debug("document unchanged")
		return outcome, nil
	}

	text, err := idx.reader.Read(path)
	if err != nil {
		return idx.unreadable(logger, outcome, err), nil
	}

	next, stop := iter.Pull(idx.chunker.Split(text))
	defer stop()

	first, ok := next()
	if !ok {
		outcome.State = StateEmpty
		return outcome, idx.dropEmptied(ctx, logger, &outcome)
	}

	docID, err := idx.store.UpsertDocument(ctx, rel, fp)
	if err != nil {
		outcome.State, outcome.Err = StateFailed, err
		return outcome, err
	}
	outcome.DocumentID = docID
	outcome.State = StateIndexed

	for i, seg := 0, first; ok; i++ {
		result, err := idx.indexChunk(ctx, p, docID, rel, i, seg)
		outcome.Chunks = append(outcome.Chunks, result)
		if err != nil {
			outcome.State, outcome.Err = StateFailed, err
			return outcome, err
		}
		if result.Err != nil {
			logger.Warn("chunk skipped", "chunk_index", i, "error", result.Err)
		}
		seg, ok = next()
	}

	logger.Info("document indexed", "chunks", outcome.Succeeded(), "failed", outcome.Failed())
	return outcome, nil
}

// indexChunk embeds and stores one segment. An embedding failure is recorded
// in the ChunkOutcome; the returned error is reserved for pass-aborting failures.
func (idx *Indexer) indexChunk(ctx context.Context, p *pass, docID int64, rel string, index int, seg chunker.Segment) (ChunkOutcome, error) {
	result := ChunkOutcome{Index: index, Headers: seg.Headers}

	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: seg.Content})
	if err != nil {
		result.Err = err
		if errors.Is(err, embedder.ErrDimensionMismatch) {
			return result, err
		}
		return result, nil
	}

	if !p.spaceChecked {
		if err := idx.store.EnsureEmbeddingSpace(ctx, idx.embedder.Model(), len(emb.Vector)); err != nil {
			result.Err = err
			return result, err
		}
		p.spaceChecked = true
	}

	meta, err := types.MarshalMetadata(types.ChunkMetadata{
		FileName:   filepath.Base(filepath.FromSlash(rel)),
		ChunkIndex: index,
		Headers:    seg.Headers,
		FilePath:   rel,
	})
	if err != nil {
		result.Err = err
		return result, nil
	}

	err = idx.store.InsertChunks(ctx, docID, []storage.NewChunk{{
		Text:      seg.Content,
		Metadata:  meta,
		Embedding: emb.Vector,
	}})
	if err != nil {
		result.Err = err
		return result, err
	}
	return result, nil
}

func (idx *Indexer) unreadable(logger *slog.Logger, outcome DocumentOutcome, err error) DocumentOutcome {
	outcome.State = StateUnreadable
	outcome.Err = fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	logger.Warn("document skipped", "error", err)
	return outcome
}

// dropEmptied removes a previously indexed document whose content is now empty.
// A document that was never indexed causes no writes.
func (idx *Indexer) dropEmptied(ctx context.Context, logger *slog.Logger, outcome *DocumentOutcome) error {
	_, err := idx.store.GetDocument(ctx, outcome.Path)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Debug("document empty")
		return nil
	}
	if err == nil {
		err = idx.store.DeleteDocument(ctx, outcome.Path)
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		outcome.State, outcome.Err = StateFailed, err
		return err
	}
	outcome.Removed = true
	logger.Info("document emptied, stale chunks removed")
	return nil
}

// prune deletes documents that no longer exist under the root
func (idx *Indexer) prune(ctx context.Context, p *pass, seen map[string]struct{}) error {
	docs, err := idx.store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, ok := seen[doc.FilePath]; ok {
			continue
		}
		if err := idx.store.DeleteDocument(ctx, doc.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		p.stats.Removed++
		p.stats.Pruned = append(p.stats.Pruned, doc.FilePath)
		p.logger.Info("document removed", "path", doc.FilePath, "chunks", doc.ChunkCount)
	}
	return nil
}

// discover returns the matching files under root in lexical order.
// Hidden directories such as .obsidian and .git are skipped.
func discover(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}
		if matchAny(patterns, name) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// relativePath returns path relative to root with forward slashes
func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}
