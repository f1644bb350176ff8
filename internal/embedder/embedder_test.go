package embedder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ComputeHash(""))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ComputeHash("hello world"))
	assert.Equal(t, ComputeHash("test"), ComputeHash("test"))
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{name: "valid request", text: "test text"},
		{name: "empty text", text: "", wantErr: ErrEmptyText},
		{name: "whitespace only", text: " \n\t", wantErr: ErrEmptyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(EmbeddingRequest{Text: tt.text})
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name   string
		input  []float32
		expect []float32
	}{
		{name: "3-4-5 triangle", input: []float32{3, 4}, expect: []float32{0.6, 0.8}},
		{name: "already unit", input: []float32{0, 1, 0}, expect: []float32{0, 1, 0}},
		{name: "negative components", input: []float32{-2, 0}, expect: []float32{-1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeVector(tt.input)
			require.NoError(t, err)
			require.Len(t, got, len(tt.expect))
			for i := range got {
				assert.InDelta(t, tt.expect[i], got[i], 1e-6)
			}
			assert.InDelta(t, 1.0, Norm(got), 1e-6)
		})
	}
}

func TestNormalizeVector_DoesNotMutateInput(t *testing.T) {
	input := []float32{3, 4}
	_, err := NormalizeVector(input)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, input)
}

func TestNormalizeVector_Degenerate(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
	}{
		{name: "zero vector", input: []float32{0, 0, 0}},
		{name: "empty vector", input: nil},
		{name: "NaN component", input: []float32{float32(math.NaN()), 1}},
		{name: "infinite component", input: []float32{float32(math.Inf(1)), 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeVector(tt.input)
			assert.ErrorIs(t, err, ErrEmbeddingService)
		})
	}
}

func TestNormalizeVector_LargeDimension(t *testing.T) {
	v := make([]float32, 3072)
	for i := range v {
		v[i] = float32(i%7) - 3
	}
	got, err := NormalizeVector(v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Norm(got), 1e-6)
}

func TestCache(t *testing.T) {
	cache := NewCache(2)

	cache.Set("a", &Embedding{Vector: []float32{1, 0}, Dimension: 2})
	cache.Set("b", &Embedding{Vector: []float32{0, 1}, Dimension: 2})
	assert.Equal(t, 2, cache.Size())

	// adding a third evicts the least recently used entry
	cache.Set("c", &Embedding{Vector: []float32{1, 1}, Dimension: 2})
	assert.Equal(t, 2, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok)

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestCache_IsolatesMutations(t *testing.T) {
	cache := NewCache(10)
	original := &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3}
	cache.Set("k", original)

	original.Vector[0] = 99

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, float32(1), got.Vector[0])

	got.Vector[1] = 99
	again, _ := cache.Get("k")
	assert.Equal(t, float32(2), again.Vector[1])
}

func TestNewCache_DefaultSize(t *testing.T) {
	cache := NewCache(0)
	require.NotNil(t, cache)
	assert.Equal(t, 0, cache.Size())
}
