package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider(t *testing.T) {
	t.Run("successful embedding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/embeddings", r.URL.Path)

			var req ollamaRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "llama3.2:3b", req.Model)
			assert.Equal(t, "hello", req.Prompt)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{3, 4}})
		}))
		defer server.Close()

		provider := NewOllamaProvider(server.URL+"/", "", 5*time.Second)
		vector, err := provider.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 4}, vector)
		assert.Equal(t, ProviderOllama, provider.Name())
		assert.Equal(t, DefaultOllamaModel, provider.Model())
		assert.NoError(t, provider.Close())
	})

	t.Run("non-200 propagates service text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model \"nope\" not found, try pulling it first"}`))
		}))
		defer server.Close()

		provider := NewOllamaProvider(server.URL, "nope", time.Second)
		_, err := provider.Embed(context.Background(), "hello")
		require.ErrorIs(t, err, ErrEmbeddingService)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), `model "nope" not found`)
	})

	t.Run("plain text error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := NewOllamaProvider(server.URL, "", time.Second).Embed(context.Background(), "x")
		require.ErrorIs(t, err, ErrEmbeddingService)
		assert.Contains(t, err.Error(), "overloaded")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer server.Close()

		_, err := NewOllamaProvider(server.URL, "", time.Second).Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrEmbeddingService)
	})

	t.Run("missing embedding field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		_, err := NewOllamaProvider(server.URL, "", time.Second).Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrEmbeddingService)
	})

	t.Run("unreachable service", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := NewOllamaProvider(url, "", time.Second).Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrEmbeddingService)
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewOllamaProvider(server.URL, "", 5*time.Second).Embed(ctx, "x")
		assert.Error(t, err)
	})
}

func TestOllamaProvider_ThroughClientIsUnitLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2, 3, 4, 5}})
	}))
	defer server.Close()

	client := NewClient(NewOllamaProvider(server.URL, "", time.Second))
	emb, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "note"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Norm(emb.Vector), 1e-6)
}

func TestOllamaProvider_ZeroVectorThroughClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0, 0, 0}})
	}))
	defer server.Close()

	client := NewClient(NewOllamaProvider(server.URL, "", time.Second))
	_, err := client.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "note"})
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func openAIHandler(t *testing.T, vector []float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"), "path %s", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])
		assert.Equal(t, "hello", body["input"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vector},
			},
			"usage": map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("successful embedding", func(t *testing.T) {
		server := httptest.NewServer(openAIHandler(t, []float64{0.5, 0.5, 0.5, 0.5}))
		defer server.Close()

		provider, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1/"})
		require.NoError(t, err)
		defer provider.Close()

		vector, err := provider.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, vector)
		assert.Equal(t, ProviderOpenAI, provider.Name())
		assert.Equal(t, DefaultOpenAIModel, provider.Model())
	})

	t.Run("api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		provider, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1/"})
		require.NoError(t, err)

		_, err = provider.Embed(context.Background(), "hello")
		require.ErrorIs(t, err, ErrEmbeddingService)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewOpenAIProvider(OpenAIConfig{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestLocalProvider(t *testing.T) {
	provider := NewLocalProvider(0)
	ctx := context.Background()

	a, err := provider.Embed(ctx, "Go channels and goroutines")
	require.NoError(t, err)
	assert.Len(t, a, LocalDimension)

	b, err := provider.Embed(ctx, "Go channels and goroutines")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	punct, err := provider.Embed(ctx, "!!!")
	require.NoError(t, err)
	assert.Greater(t, Norm(punct), 0.0)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = provider.Embed(cancelled, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalProvider_SimilarTextsAreCloser(t *testing.T) {
	client := NewClient(NewLocalProvider(256))
	ctx := context.Background()

	embed := func(text string) []float32 {
		emb, err := client.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		require.NoError(t, err)
		return emb.Vector
	}
	dist := func(a, b []float32) float64 {
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return sum
	}

	query := embed("sourdough bread starter")
	near := embed("feeding a sourdough starter before baking bread")
	far := embed("kubernetes pod autoscaling thresholds")

	assert.Less(t, dist(query, near), dist(query, far))
}
