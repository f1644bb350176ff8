package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ambisinistra/obsidian-rag/internal/embedder"
	"github.com/ambisinistra/obsidian-rag/internal/storage"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "OBSIDIAN_RAG_"

// Defaults
const (
	DefaultVaultRoot   = "./second_brain"
	DefaultDBPath      = "obsidian-rag.db"
	DefaultSearchLimit = 5
	DefaultDebounceMs  = 500
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// VaultConfig describes the document tree being indexed.
type VaultConfig struct {
	Root         string   `yaml:"root" toml:"root"`
	Patterns     []string `yaml:"patterns" toml:"patterns"`
	PruneMissing bool     `yaml:"prune_missing" toml:"prune_missing"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"`
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	Model             string  `yaml:"model" toml:"model"`
	APIKey            string  `yaml:"api_key" toml:"api_key"`
	Dimension         int     `yaml:"dimension" toml:"dimension"`
	CacheSize         int     `yaml:"cache_size" toml:"cache_size"`
	TimeoutSecs       int     `yaml:"timeout_secs" toml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// StorageConfig selects the vector store backend.
type StorageConfig struct {
	Backend  string `yaml:"backend" toml:"backend"`
	Path     string `yaml:"path" toml:"path"` // sqlite database file
	DSN      string `yaml:"dsn" toml:"dsn"`   // postgres connection string
	MaxConns int32  `yaml:"max_conns" toml:"max_conns"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	Limit        int `yaml:"limit" toml:"limit"`
	CacheTTLSecs int `yaml:"cache_ttl_secs" toml:"cache_ttl_secs"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" toml:"debounce_ms"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}

// Config is the root application configuration structure.
type Config struct {
	Vault     VaultConfig     `yaml:"vault" toml:"vault"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Search    SearchConfig    `yaml:"search" toml:"search"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch"`
	Log       LogConfig       `yaml:"log" toml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Vault: VaultConfig{
			Root:         DefaultVaultRoot,
			Patterns:     []string{"*.md"},
			PruneMissing: true,
		},
		Embedding: EmbeddingConfig{
			Provider:    embedder.ProviderOllama,
			BaseURL:     embedder.DefaultOllamaURL,
			Model:       embedder.DefaultOllamaModel,
			CacheSize:   embedder.DefaultCacheSize,
			TimeoutSecs: int(embedder.DefaultOllamaTimeout / time.Second),
		},
		Storage: StorageConfig{
			Backend:  storage.BackendSQLite,
			Path:     DefaultDBPath,
			MaxConns: 4,
		},
		Search: SearchConfig{Limit: DefaultSearchLimit, CacheTTLSecs: 600},
		Watch:  WatchConfig{DebounceMs: DefaultDebounceMs},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the file at path (if any),
// then OBSIDIAN_RAG_* environment variables. A .env file in the working
// directory is loaded into the environment first. The result is validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile overlays the file onto cfg; the format follows the extension.
func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not an integer", ErrInvalidConfig, EnvPrefix, key, v)
		}
		*dst = n
		return nil
	}

	str("VAULT", &c.Vault.Root)
	if v, ok := os.LookupEnv(EnvPrefix + "PATTERNS"); ok {
		c.Vault.Patterns = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvPrefix + "PRUNE_MISSING"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sPRUNE_MISSING=%q is not a boolean", ErrInvalidConfig, EnvPrefix, v)
		}
		c.Vault.PruneMissing = b
	}

	str("PROVIDER", &c.Embedding.Provider)
	str("EMBEDDING_URL", &c.Embedding.BaseURL)
	str("MODEL", &c.Embedding.Model)
	str("API_KEY", &c.Embedding.APIKey)

	str("BACKEND", &c.Storage.Backend)
	str("DB_PATH", &c.Storage.Path)
	str("DSN", &c.Storage.DSN)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	for key, dst := range map[string]*int{
		"DIMENSION":    &c.Embedding.Dimension,
		"SEARCH_LIMIT": &c.Search.Limit,
		"DEBOUNCE_MS":  &c.Watch.DebounceMs,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Vault.Root) == "" {
		errs = append(errs, errors.New("vault root is required"))
	}
	for _, p := range c.Vault.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("invalid pattern %q", p))
		}
	}
	if !slices.Contains(embedder.SupportedProviders(), c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension < 0 {
		errs = append(errs, errors.New("embedding dimension must be >= 0"))
	}
	switch c.Storage.Backend {
	case storage.BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage path is required for sqlite"))
		}
	case storage.BackendPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage dsn is required for postgres"))
		}
		if c.Embedding.Dimension <= 0 {
			errs = append(errs, errors.New("embedding dimension is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Search.Limit <= 0 {
		errs = append(errs, errors.New("search limit must be positive"))
	}
	if c.Watch.DebounceMs < 0 {
		errs = append(errs, errors.New("watch debounce must be >= 0"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// EmbedderConfig converts the embedding section for embedder.New
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:          c.Embedding.Provider,
		BaseURL:           c.Embedding.BaseURL,
		Model:             c.Embedding.Model,
		APIKey:            c.Embedding.APIKey,
		Dimension:         c.Embedding.Dimension,
		CacheSize:         c.Embedding.CacheSize,
		Timeout:           time.Duration(c.Embedding.TimeoutSecs) * time.Second,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
		Burst:             c.Embedding.Burst,
	}
}

// Debounce returns the watcher quiet period
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// SearchCacheTTL returns how long cached search results stay valid
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.Search.CacheTTLSecs) * time.Second
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
