package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Client turns a raw Provider into an Embedder: it validates input, paces
// requests, caches results and normalizes every vector to unit length.
// There is no retry at this layer.
type Client struct {
	provider  Provider
	cache     *Cache
	limiter   *rate.Limiter
	logger    *slog.Logger
	dimension atomic.Int64
	fixedDim  bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithCache enables the embedding cache
func WithCache(cache *Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithRateLimit bounds requests to the provider. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithDimension pins the expected embedding dimension. Vectors of any other
// length fail with ErrDimensionMismatch. Without it the first vector sets the dimension.
func WithDimension(d int) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.dimension.Store(int64(d))
			c.fixedDim = true
		}
	}
}

// WithLogger sets the logger used for provider diagnostics
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient wraps provider
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateEmbedding returns the unit-length embedding of req.Text
func (c *Client) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if c.cache != nil {
		if emb, ok := c.cache.Get(hash); ok {
			return emb, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", ErrEmbeddingService, err)
		}
	}

	raw, err := c.provider.Embed(ctx, req.Text)
	if err != nil {
		if errors.Is(err, ErrEmbeddingService) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrEmbeddingService, c.provider.Name(), err)
	}

	if err := c.checkDimension(len(raw)); err != nil {
		return nil, err
	}

	vector, err := NormalizeVector(raw)
	if err != nil {
		c.logger.Debug("provider returned degenerate vector",
			"provider", c.provider.Name(),
			"model", c.provider.Model(),
			"error", err)
		return nil, err
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  c.provider.Name(),
		Model:     c.provider.Model(),
		Hash:      hash,
	}
	if c.cache != nil {
		c.cache.Set(hash, emb)
	}
	return emb, nil
}

func (c *Client) checkDimension(got int) error {
	if got == 0 {
		return fmt.Errorf("%w: empty vector", ErrEmbeddingService)
	}
	if !c.fixedDim {
		c.dimension.CompareAndSwap(0, int64(got))
	}
	if want := int(c.dimension.Load()); want != got {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, got)
	}
	return nil
}

// Dimension returns the pinned or learned dimension, 0 before the first embedding
func (c *Client) Dimension() int {
	return int(c.dimension.Load())
}

// Provider returns the provider name
func (c *Client) Provider() string {
	return c.provider.Name()
}

// Model returns the model name
func (c *Client) Model() string {
	return c.provider.Model()
}

// CacheSize returns the number of cached embeddings
func (c *Client) CacheSize() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Size()
}

// Close releases the provider
func (c *Client) Close() error {
	if c.cache != nil {
		c.cache.Clear()
	}
	return c.provider.Close()
}
