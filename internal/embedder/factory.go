package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // ollama, openai or local
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int // 0 learns the dimension from the first vector
	CacheSize int // 0 disables the cache
	Timeout   time.Duration

	// RequestsPerSecond paces calls to the service; 0 disables pacing
	RequestsPerSecond float64
	Burst             int
}

// New creates an embedding Client with explicit configuration
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	opts := []ClientOption{
		WithLogger(logger),
		WithDimension(cfg.Dimension),
		WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
	}
	if cfg.CacheSize > 0 {
		opts = append(opts, WithCache(NewCache(cfg.CacheSize)))
	}
	return NewClient(provider, opts...), nil
}

// NewProvider builds the raw provider named by cfg.Provider
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case ProviderOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv(EnvOpenAIAPIKey)
		}
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:     apiKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			Timeout:    cfg.Timeout,
		})
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// SupportedProviders lists the accepted provider names
func SupportedProviders() []string {
	return []string{ProviderOllama, ProviderOpenAI, ProviderLocal}
}
