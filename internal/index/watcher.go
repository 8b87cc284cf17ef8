package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spetr/matwizard/internal/config"
	"github.com/spetr/matwizard/internal/kb"
	"github.com/spetr/matwizard/pkg/types"
)

// Watcher watches the documents directory and re-indexes changed files.
type Watcher struct {
	config  *config.Config
	kb      *kb.KnowledgeBase
	docsDir string

	watcher *fsnotify.Watcher

	// Debouncing
	pendingMu    sync.Mutex
	pendingFiles map[string]time.Time
	debounceTime time.Duration
}

// WatcherConfig contains watcher configuration.
type WatcherConfig struct {
	DocsDir      string
	Config       *config.Config
	KB           *kb.KnowledgeBase
	DebounceTime time.Duration // Default: 500ms
}

// NewWatcher creates a new document watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceTime := cfg.DebounceTime
	if debounceTime == 0 {
		debounceTime = 500 * time.Millisecond
	}

	return &Watcher{
		config:       cfg.Config,
		kb:           cfg.KB,
		docsDir:      cfg.DocsDir,
		watcher:      watcher,
		pendingFiles: make(map[string]time.Time),
		debounceTime: debounceTime,
	}, nil
}

// Watch starts watching for document changes.
// It blocks until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addWatchDirs(); err != nil {
		return err
	}

	slog.Info("watching for document changes", "dir", w.docsDir)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping watcher")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// addWatchDirs recursively adds directories to watch.
func (w *Watcher) addWatchDirs() error {
	return filepath.WalkDir(w.docsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			relPath, _ := filepath.Rel(w.docsDir, path)
			for _, pattern := range w.config.Docs.Exclude {
				if matchGlob(pattern, relPath+"/") {
					return filepath.SkipDir
				}
			}

			if strings.HasPrefix(d.Name(), ".") && path != w.docsDir {
				return filepath.SkipDir
			}

			if err := w.watcher.Add(path); err != nil {
				slog.Warn("failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

// handleEvent queues a file system event for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return
	}

	relPath, err := filepath.Rel(w.docsDir, event.Name)
	if err != nil {
		return
	}

	included := false
	for _, pattern := range w.config.Docs.Include {
		if matchGlob(pattern, relPath) {
			included = true
			break
		}
	}
	if !included {
		return
	}

	for _, pattern := range w.config.Docs.Exclude {
		if matchGlob(pattern, relPath) {
			return
		}
	}

	w.pendingMu.Lock()
	w.pendingFiles[event.Name] = time.Now()
	w.pendingMu.Unlock()

	slog.Debug("document changed", "path", relPath, "op", event.Op.String())
}

// processDebounced processes pending files after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// flushPending re-indexes files that have been stable for the debounce
// period.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	now := time.Now()
	var toProcess []string
	for path, changedAt := range w.pendingFiles {
		if now.Sub(changedAt) >= w.debounceTime {
			toProcess = append(toProcess, path)
			delete(w.pendingFiles, path)
		}
	}
	w.pendingMu.Unlock()

	if len(toProcess) == 0 {
		return
	}

	slog.Info("re-indexing changed documents", "count", len(toProcess))

	for _, path := range toProcess {
		if ctx.Err() != nil {
			return
		}

		relPath, _ := filepath.Rel(w.docsDir, path)

		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			w.removeDocument(ctx, relPath)
			continue
		}
		if err != nil {
			slog.Warn("failed to stat document", "path", relPath, "error", err)
			continue
		}
		if info.IsDir() {
			continue
		}

		if err := w.indexDocument(ctx, path, relPath); err != nil {
			slog.Warn("failed to index document", "path", relPath, "error", err)
		}
	}
}

// removeDocument drops a deleted document from the store when the
// store supports it. Append-only stores keep stale chunks until the
// next full re-index.
func (w *Watcher) removeDocument(ctx context.Context, relPath string) {
	if !w.kb.SupportsSourceDeletion() {
		slog.Debug("store cannot drop deleted document", "source", relPath)
		return
	}
	if err := w.kb.DeleteSource(ctx, relPath); err != nil {
		slog.Warn("failed to remove deleted document", "source", relPath, "error", err)
		return
	}
	slog.Info("removed deleted document from index", "source", relPath)
}

// indexDocument reads and indexes a single document.
func (w *Watcher) indexDocument(ctx context.Context, path, relPath string) error {
	maxSize := parseSize(w.config.Limits.MaxFileSize)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil // Skip large files
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	doc := &types.Document{
		Source:  relPath,
		Title:   filepath.Base(relPath),
		Content: content,
	}
	doc.Hash = doc.ComputeHash()

	if w.kb.SupportsSourceDeletion() {
		if err := w.kb.DeleteSource(ctx, relPath); err != nil {
			slog.Warn("failed to drop stale chunks", "source", relPath, "error", err)
		}
	}

	n, err := w.kb.IndexDocument(ctx, doc)
	if err != nil {
		return err
	}

	slog.Info("indexed document", "source", relPath, "chunks", n)
	return nil
}

// Close closes the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
