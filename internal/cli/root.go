package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ambisinistra/obsidian-rag/internal/config"
	"github.com/ambisinistra/obsidian-rag/internal/rag"
)

// app carries flags and configuration shared by every command of one invocation
type app struct {
	version string
	stderr  io.Writer

	configPath string
	vault      string
	dbPath     string
	provider   string

	cfg    *config.Config
	logger *slog.Logger
}

// Option configures the root command
type Option func(*app)

// WithVersion sets the version reported by the version command
func WithVersion(v string) Option {
	return func(a *app) {
		a.version = v
	}
}

// WithLogOutput sets where logs are written; stdout is never used
func WithLogOutput(w io.Writer) Option {
	return func(a *app) {
		a.stderr = w
	}
}

// NewRootCommand builds the obsidian-rag command tree
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{version: "dev", stderr: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "obsidian-rag",
		Short: "Semantic search over a markdown notes vault",
		Long: `obsidian-rag incrementally indexes a directory of markdown notes into a
vector store and answers similarity searches against it.

Only notes whose content changed since the last pass are re-embedded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(os.Stdout)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML or TOML config file")
	flags.StringVar(&a.vault, "vault", "", "vault root (overrides config)")
	flags.StringVar(&a.dbPath, "db", "", "sqlite database path (overrides config)")
	flags.StringVar(&a.provider, "provider", "", "embedding provider: ollama, openai or local (overrides config)")

	root.AddCommand(
		a.indexCommand(),
		a.searchCommand(),
		a.resetCommand(),
		a.statusCommand(),
		a.serveCommand(),
		a.watchCommand(),
		a.versionCommand(),
	)
	return root
}

// Execute runs the command tree with ctx and returns the process exit code
func Execute(ctx context.Context, version string, args []string) int {
	root := NewRootCommand(WithVersion(version))
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads configuration once and applies flag overrides
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.vault != "" {
		cfg.Vault.Root = a.vault
	}
	if a.dbPath != "" {
		cfg.Storage.Path = a.dbPath
	}
	if a.provider != "" {
		cfg.Embedding.Provider = a.provider
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a.cfg = cfg
	a.logger = newLogger(a.stderr, cfg)
	return cfg, nil
}

// withService opens and initializes the service, runs fn, then closes it
func (a *app) withService(cmd *cobra.Command, fn func(svc *rag.Service) error) (err error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	svc, err := rag.Open(cmd.Context(), cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svc.Close(); err == nil {
			err = closeErr
		}
	}()

	if err := svc.Initialize(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize index: %w", err)
	}
	return fn(svc)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
