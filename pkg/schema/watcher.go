package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads dataset documents when they change on disk. Documents
// that fail to load are logged and skipped, so the previous Registry stays
// published.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Logger   *slog.Logger

	// Apply receives every successfully reloaded Registry.
	Apply func(reg *Registry) error
}

// Run watches Dir until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.Dir, err)
	}
	logger.Info("watching dataset definitions", slog.String("dir", w.Dir))

	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
		timer   *time.Timer
	)
	flush := func() {
		mu.Lock()
		paths := pending
		pending = make(map[string]bool)
		mu.Unlock()
		for p := range paths {
			w.reload(logger, p)
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !IsDatasetFile(event.Name) {
				continue
			}
			mu.Lock()
			pending[filepath.Clean(event.Name)] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, flush)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) reload(logger *slog.Logger, path string) {
	reg, err := LoadFile(path)
	if err != nil {
		logger.Error("dataset reload failed, keeping previous schema", slog.String("file", path), slog.Any("error", err))
		return
	}
	if w.Apply != nil {
		if err := w.Apply(reg); err != nil {
			logger.Error("dataset reload rejected", slog.String("file", path), slog.Any("error", err))
			return
		}
	}
	logger.Info("dataset reloaded", slog.String("dataset", reg.Key()), slog.String("file", path))
}
