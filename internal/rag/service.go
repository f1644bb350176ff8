package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ambisinistra/obsidian-rag/internal/config"
	"github.com/ambisinistra/obsidian-rag/internal/embedder"
	"github.com/ambisinistra/obsidian-rag/internal/indexer"
	"github.com/ambisinistra/obsidian-rag/internal/searcher"
	"github.com/ambisinistra/obsidian-rag/internal/storage"
	"github.com/ambisinistra/obsidian-rag/pkg/types"
)

// ErrIndexingInProgress is returned when a pass is requested while another one runs
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Service is the single entry point front ends use: reindex everything and search.
// One Service is built at startup and shared by every handler.
type Service struct {
	store    storage.Store
	embedder embedder.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *slog.Logger

	vault       indexer.Config
	searchLimit int
	cacheTTL    time.Duration

	lock    indexer.IndexLock
	mu      sync.Mutex
	lastRun *indexer.Statistics
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger shared with the indexer
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVault sets the tree indexed by ReindexAll
func WithVault(cfg indexer.Config) Option {
	return func(s *Service) {
		s.vault = cfg
	}
}

// WithSearchLimit sets the result count used when a caller passes limit <= 0
func WithSearchLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// WithSearchCacheTTL sets how long repeated queries are served from cache
func WithSearchCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

// NewService wires a service from an already opened store and embedder.
// The service takes ownership of both and closes them in Close.
func NewService(store storage.Store, emb embedder.Embedder, opts ...Option) *Service {
	s := &Service{
		store:       store,
		embedder:    emb,
		logger:      slog.New(slog.DiscardHandler),
		vault:       indexer.Config{Root: config.DefaultVaultRoot, PruneMissing: true},
		searchLimit: searcher.DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.indexer = indexer.New(store, emb, indexer.WithLogger(s.logger))
	s.searcher = searcher.NewSearcher(store, emb, searcher.WithCacheTTL(s.cacheTTL))
	return s
}

// Open builds the store and embedder described by cfg and wires a Service.
// Initialize must still be called before use.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	emb, err := embedder.New(cfg.EmbedderConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Info("service opened",
		"backend", cfg.Storage.Backend,
		"build_mode", storage.BuildMode,
		"provider", emb.Provider(),
		"model", emb.Model(),
		"vault", cfg.Vault.Root)

	return NewService(store, emb,
		WithLogger(logger),
		WithVault(indexer.Config{
			Root:         cfg.Vault.Root,
			Patterns:     cfg.Vault.Patterns,
			PruneMissing: cfg.Vault.PruneMissing,
		}),
		WithSearchLimit(cfg.Search.Limit),
		WithSearchCacheTTL(cfg.SearchCacheTTL()),
	), nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case storage.BackendPostgres:
		return storage.NewPostgresStore(ctx, storage.PostgresConfig{
			DSN:       cfg.Storage.DSN,
			Dimension: cfg.Embedding.Dimension,
			MaxConns:  cfg.Storage.MaxConns,
		})
	case storage.BackendSQLite, "":
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return storage.NewSQLiteStore(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Initialize prepares the store schema. It is safe to call repeatedly.
func (s *Service) Initialize(ctx context.Context) error {
	return s.store.Initialize(ctx)
}

// VaultRoot returns the indexed directory
func (s *Service) VaultRoot() string {
	return s.vault.Root
}

// ReindexAll runs one incremental pass over the vault.
// A pass already running makes this call fail fast with ErrIndexingInProgress.
func (s *Service) ReindexAll(ctx context.Context) (*indexer.Statistics, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer s.lock.Release()

	return s.reindex(ctx)
}

// Rebuild clears the index and reindexes the whole vault from scratch
func (s *Service) Rebuild(ctx context.Context) (*indexer.Statistics, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer s.lock.Release()

	if err := s.clear(ctx); err != nil {
		return nil, err
	}
	return s.reindex(ctx)
}

// Reset deletes every document and chunk
func (s *Service) Reset(ctx context.Context) error {
	if !s.lock.TryAcquire() {
		return ErrIndexingInProgress
	}
	defer s.lock.Release()

	return s.clear(ctx)
}

func (s *Service) clear(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	s.searcher.InvalidateCache()
	s.logger.Info("index cleared")
	return nil
}

func (s *Service) reindex(ctx context.Context) (*indexer.Statistics, error) {
	stats, err := s.indexer.IndexAll(ctx, s.vault)
	if err != nil || (stats != nil && stats.Writes()) {
		s.searcher.InvalidateCache()
	}
	if stats != nil {
		s.mu.Lock()
		s.lastRun = stats
		s.mu.Unlock()
	}
	return stats, err
}

// Search returns the chunks nearest to query. A limit <= 0 uses the configured default.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = s.searchLimit
	}
	resp, err := s.searcher.Execute(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		UseCache: s.cacheTTL > 0,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Status describes the index and the most recent pass
type Status struct {
	Index     *storage.Status
	VaultRoot string
	Provider  string
	Model     string
	Indexing  bool
	LastRun   *indexer.Statistics // nil before the first pass of this process
}

// Status reports index contents and service state
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st, err := s.store.Status(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	last := s.lastRun
	s.mu.Unlock()

	return &Status{
		Index:     st,
		VaultRoot: s.vault.Root,
		Provider:  s.embedder.Provider(),
		Model:     s.embedder.Model(),
		Indexing:  s.lock.Held(),
		LastRun:   last,
	}, nil
}

// Close releases the embedder and the store
func (s *Service) Close() error {
	return errors.Join(s.embedder.Close(), s.store.Close())
}
