package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider returns canned vectors and counts calls
type stubProvider struct {
	mu     sync.Mutex
	calls  int
	vector []float32
	err    error
}

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float32, len(s.vector))
	copy(out, s.vector)
	return out, nil
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }
func (s *stubProvider) Close() error  { return nil }

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestClient_Normalizes(t *testing.T) {
	client := NewClient(&stubProvider{vector: []float32{3, 4}})

	emb, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Norm(emb.Vector), 1e-6)
	assert.Equal(t, 2, emb.Dimension)
	assert.Equal(t, "stub", emb.Provider)
	assert.Equal(t, "stub-model", emb.Model)
	assert.Equal(t, ComputeHash("hello"), emb.Hash)
	assert.Equal(t, 2, client.Dimension())
}

func TestClient_EmptyText(t *testing.T) {
	provider := &stubProvider{vector: []float32{1}}
	client := NewClient(provider)

	_, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, 0, provider.callCount())
}

func TestClient_ZeroVectorIsServiceError(t *testing.T) {
	client := NewClient(&stubProvider{vector: []float32{0, 0, 0}})

	_, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestClient_WrapsProviderErrors(t *testing.T) {
	client := NewClient(&stubProvider{err: errors.New("connection refused")})

	_, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.ErrorIs(t, err, ErrEmbeddingService)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClient_PinnedDimension(t *testing.T) {
	client := NewClient(&stubProvider{vector: []float32{1, 2, 3}}, WithDimension(4))

	_, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.NotErrorIs(t, err, ErrEmbeddingService)
	assert.Equal(t, 4, client.Dimension())
}

func TestClient_LearnedDimensionIsStable(t *testing.T) {
	provider := &stubProvider{vector: []float32{1, 2}}
	client := NewClient(provider)

	_, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "first"})
	require.NoError(t, err)

	provider.mu.Lock()
	provider.vector = []float32{1, 2, 3}
	provider.mu.Unlock()

	_, err = client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "second"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestClient_Cache(t *testing.T) {
	provider := &stubProvider{vector: []float32{1, 1}}
	client := NewClient(provider, WithCache(NewCache(10)))
	ctx := context.Background()

	first, err := client.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same"})
	require.NoError(t, err)
	second, err := client.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same"})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, 1, client.CacheSize())
}

func TestClient_FailuresAreNotCached(t *testing.T) {
	provider := &stubProvider{vector: []float32{0, 0}}
	client := NewClient(provider, WithCache(NewCache(10)))
	ctx := context.Background()

	_, err := client.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	require.Error(t, err)
	_, err = client.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	require.Error(t, err)

	assert.Equal(t, 2, provider.callCount())
	assert.Equal(t, 0, client.CacheSize())
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	client := NewClient(&stubProvider{vector: []float32{1}}, WithRateLimit(0.001, 1))

	// first call consumes the single burst token
	_, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.GenerateEmbedding(ctx, EmbeddingRequest{Text: "b"})
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestClient_ConcurrentUse(t *testing.T) {
	client := NewClient(NewLocalProvider(32), WithCache(NewCache(100)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "shared text"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, client.Dimension())
}
