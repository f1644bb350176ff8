package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{name: "default is ollama", cfg: Config{}, wantName: ProviderOllama},
		{name: "explicit ollama", cfg: Config{Provider: "Ollama"}, wantName: ProviderOllama},
		{name: "local", cfg: Config{Provider: "local"}, wantName: ProviderLocal},
		{name: "openai with key", cfg: Config{Provider: "openai", APIKey: "k"}, wantName: ProviderOpenAI},
		{name: "unknown", cfg: Config{Provider: "jina"}, wantErr: ErrUnsupportedProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, provider.Name())
		})
	}
}

func TestNewProvider_OpenAIWithoutKey(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "")
	_, err := NewProvider(Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestNewProvider_OpenAIKeyFromEnv(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "from-env")
	provider, err := NewProvider(Config{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, provider.Name())
}

func TestNew(t *testing.T) {
	client, err := New(Config{Provider: "local", Dimension: 64, CacheSize: 10}, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, ProviderLocal, client.Provider())
	assert.Equal(t, DefaultLocalModel, client.Model())
	assert.Equal(t, 64, client.Dimension())
}

func TestSupportedProviders(t *testing.T) {
	assert.ElementsMatch(t, []string{"ollama", "openai", "local"}, SupportedProviders())
}
