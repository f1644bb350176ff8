package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ambisinistra/obsidian-rag/internal/embedder"
	"github.com/ambisinistra/obsidian-rag/internal/storage"
	"github.com/ambisinistra/obsidian-rag/pkg/types"
)

// ErrEmptyQuery is returned for a blank query
var ErrEmptyQuery = errors.New("query cannot be empty")

const (
	// DefaultLimit is used when the request limit is not positive
	DefaultLimit = 5
	// MaxLimit caps the number of results per query
	MaxLimit = 100

	defaultCacheSize = 1000
	defaultCacheTTL  = 10 * time.Minute
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	UseCache bool // Whether to use query cache
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results  []types.SearchResult
	Duration time.Duration
	CacheHit bool
}

// cacheEntry represents a cached result set with expiration time
type cacheEntry struct {
	results   []types.SearchResult
	expiresAt time.Time
}

// Searcher embeds queries and ranks stored chunks by distance
type Searcher struct {
	store    storage.Store
	embedder embedder.Embedder
	cacheTTL time.Duration
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// Option configures a Searcher
type Option func(*Searcher)

// WithCacheTTL sets how long cached result sets stay valid
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Searcher) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Store, emb embedder.Embedder, opts ...Option) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](defaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &Searcher{
		store:    store,
		embedder: emb,
		cacheTTL: defaultCacheTTL,
		cache:    cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to limit chunks ordered by ascending distance to query.
// No matches is an empty slice, not an error.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	resp, err := s.Execute(ctx, SearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Execute performs a search based on the request parameters
func (s *Searcher) Execute(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached, ok := s.checkCache(req); ok {
			return &SearchResponse{Results: cached, CacheHit: true, Duration: time.Since(startTime)}, nil
		}
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	neighbors, err := s.store.Nearest(ctx, emb.Vector, req.Limit)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(neighbors))
	for i, n := range neighbors {
		meta, err := types.UnmarshalMetadata(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d has malformed metadata: %w", storage.ErrStore, n.ChunkID, err)
		}
		result := types.SearchResult{
			ChunkID:    n.ChunkID,
			Rank:       i + 1,
			Text:       n.Text,
			SourcePath: n.FilePath,
			Metadata:   meta,
			Distance:   n.Distance,
			Score:      1 - n.Distance,
		}
		if err := result.Validate(); err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %w", storage.ErrStore, n.ChunkID, err)
		}
		results = append(results, result)
	}

	if req.UseCache && len(results) > 0 {
		s.storeInCache(req, results)
	}

	return &SearchResponse{Results: results, Duration: time.Since(startTime)}, nil
}

// InvalidateCache drops every cached result set. Call it after the index changes.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// validateRequest ensures search request is valid
func validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return nil
}

func (s *Searcher) checkCache(req SearchRequest) ([]types.SearchResult, bool) {
	hash := computeQueryHash(req)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, false
	}
	results := copyResults(entry.results)
	s.cacheMu.RUnlock()

	return results, true
}

func (s *Searcher) storeInCache(req SearchRequest, results []types.SearchResult) {
	entry := &cacheEntry{
		results:   copyResults(results),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// copyResults deep-copies results so cached entries cannot be modified by callers
func copyResults(src []types.SearchResult) []types.SearchResult {
	dst := make([]types.SearchResult, len(src))
	for i, r := range src {
		dst[i] = r
		dst[i].Metadata.Headers = slices.Clone(r.Metadata.Headers)
	}
	return dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	return sha256.Sum256([]byte(req.Query + "|" + strconv.Itoa(req.Limit)))
}
