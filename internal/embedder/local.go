package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// Local provider defaults
const (
	ProviderLocal     = "local"
	DefaultLocalModel = "local-hashing"
	LocalDimension    = 384
)

// LocalProvider produces deterministic feature-hashed vectors without any
// network service. Texts sharing words land close together, identical texts
// map to identical vectors. Useful offline and in tests.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local provider; dimension <= 0 uses LocalDimension
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension}
}

// Embed hashes each lowercase word into a signed bucket
func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		tokens = []string{strings.TrimSpace(text)}
	}

	vector := make([]float32, l.dimension)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := sum % uint64(l.dimension)
		if sum&(1<<63) != 0 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}

	// opposite signs in one bucket can cancel out
	var nonZero bool
	for _, v := range vector {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		vector[0] = 1
	}
	return vector, nil
}

func (l *LocalProvider) Name() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Close() error {
	return nil
}
