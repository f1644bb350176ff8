package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ambisinistra/obsidian-rag/internal/indexer"
	"github.com/ambisinistra/obsidian-rag/internal/rag"
)

// DefaultDebounce is the quiet period after the last change before a pass starts
const DefaultDebounce = 500 * time.Millisecond

// Reindexer runs an incremental pass; *rag.Service satisfies it
type Reindexer interface {
	ReindexAll(ctx context.Context) (*indexer.Statistics, error)
}

// Watcher triggers a reindex when matching files under the vault change.
// Bursts of events (editor saves, git checkouts) collapse into one pass.
type Watcher struct {
	root     string
	patterns []string
	debounce time.Duration
	target   Reindexer
	logger   *slog.Logger
	onPass   func(*indexer.Statistics, error)

	fsw  *fsnotify.Watcher
	mu   sync.Mutex
	dirs map[string]struct{}
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets the quiet period
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithPatterns sets the file globs that trigger a pass
func WithPatterns(patterns []string) Option {
	return func(w *Watcher) {
		if len(patterns) > 0 {
			w.patterns = patterns
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithPassHook is called after every pass the watcher starts
func WithPassHook(fn func(*indexer.Statistics, error)) Option {
	return func(w *Watcher) {
		w.onPass = fn
	}
}

// New watches root and every non-hidden directory below it.
// Watches are in place when New returns.
func New(root string, target Reindexer, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:     abs,
		patterns: []string{indexer.DefaultPattern},
		debounce: DefaultDebounce,
		target:   target,
		logger:   slog.New(slog.DiscardHandler),
		fsw:      fsw,
		dirs:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled. Pass failures are logged and
// watching continues; a pass rejected because another one is running is retried
// after the next quiet period.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("watching vault", "root", w.root, "directories", w.watchedCount(), "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			stats, err := w.target.ReindexAll(ctx)
			if errors.Is(err, rag.ErrIndexingInProgress) {
				w.logger.Debug("pass already running, retrying after debounce")
				timer.Reset(w.debounce)
				continue
			}
			if err != nil {
				w.logger.Error("reindex after change failed", "error", err)
			} else {
				w.logger.Info("reindexed after change", "summary", stats.Summary())
			}
			if w.onPass != nil {
				w.onPass(stats, err)
			}
		}
	}
}

// Close stops watching without waiting for Run
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// handleEvent reports whether event may change the index. New directories are
// added to the watch set as a side effect.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if w.hidden(event.Name) {
		return false
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
		return w.matches(event.Name)

	case event.Has(fsnotify.Write):
		return w.matches(event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.forgetDir(event.Name) {
			return true
		}
		return w.matches(event.Name)
	}
	return false
}

// addTree watches dir and its non-hidden subdirectories
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.mu.Lock()
		w.dirs[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

// forgetDir drops a removed directory and everything below it from the watch set
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.dirs[path]; !ok {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}
	return true
}

func (w *Watcher) watchedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// hidden reports whether any element of path below the root starts with a dot
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func (w *Watcher) matches(path string) bool {
	name := filepath.Base(path)
	for _, pattern := range w.patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
