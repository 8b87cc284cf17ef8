// Package index scans the documents directory and feeds files into the
// knowledge base, with progress reporting and change watching.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spetr/matwizard/internal/config"
	"github.com/spetr/matwizard/internal/kb"
	"github.com/spetr/matwizard/pkg/types"
)

// Indexer handles parallel document indexing.
type Indexer struct {
	config  *config.Config
	kb      *kb.KnowledgeBase
	docsDir string

	// Progress tracking
	progressMu sync.Mutex
	progress   types.IndexProgress
	onProgress func(types.IndexProgress)
}

// Config contains indexer configuration.
type Config struct {
	DocsDir    string
	Config     *config.Config
	KB         *kb.KnowledgeBase
	OnProgress func(types.IndexProgress)
}

// New creates a new indexer.
func New(cfg Config) *Indexer {
	return &Indexer{
		config:     cfg.Config,
		kb:         cfg.KB,
		docsDir:    cfg.DocsDir,
		onProgress: cfg.OnProgress,
	}
}

// Stats holds the outcome of an indexing run.
type Stats struct {
	Files  int
	Chunks int
}

// Index scans the documents directory and indexes every matching file.
// Stores that support per-source deletion get existing chunks for a
// source replaced; append-only stores accumulate.
func (idx *Indexer) Index(ctx context.Context) (*Stats, error) {
	startTime := time.Now()

	idx.updateProgress("scanning", 0, 0, 0, "")

	docs, err := idx.scanDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents: %w", err)
	}

	slog.Info("scanned documents", "total", len(docs), "dir", idx.docsDir)
	idx.updateProgress("indexing", len(docs), 0, 0, "")

	if len(docs) == 0 {
		return &Stats{}, nil
	}

	chunks, err := idx.indexParallel(ctx, docs)
	if err != nil {
		return nil, err
	}

	slog.Info("indexing complete",
		"files", len(docs),
		"chunks", chunks,
		"duration", time.Since(startTime).Round(time.Millisecond),
	)

	return &Stats{Files: len(docs), Chunks: chunks}, nil
}

// scanDocuments walks the documents directory and reads matching files.
func (idx *Indexer) scanDocuments(ctx context.Context) ([]*types.Document, error) {
	var docs []*types.Document

	err := filepath.WalkDir(idx.docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, _ := filepath.Rel(idx.docsDir, path)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != idx.docsDir {
				return filepath.SkipDir
			}
			for _, pattern := range idx.config.Docs.Exclude {
				if matchGlob(pattern, relPath+"/") {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !idx.shouldIndex(relPath) {
			return nil
		}

		doc, err := idx.readDocument(path, relPath)
		if err != nil {
			slog.Warn("failed to read document", "path", relPath, "error", err)
			return nil
		}

		docs = append(docs, doc)

		if idx.config.Limits.MaxFiles > 0 && len(docs) >= idx.config.Limits.MaxFiles {
			return fmt.Errorf("max files limit reached: %d", idx.config.Limits.MaxFiles)
		}

		return nil
	})

	return docs, err
}

// shouldIndex applies the include and exclude patterns to a relative path.
func (idx *Indexer) shouldIndex(relPath string) bool {
	included := false
	for _, pattern := range idx.config.Docs.Include {
		if matchGlob(pattern, relPath) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range idx.config.Docs.Exclude {
		if matchGlob(pattern, relPath) {
			return false
		}
	}
	return true
}

// readDocument reads a file into a document, enforcing the size limit.
func (idx *Indexer) readDocument(path, relPath string) (*types.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	maxSize := parseSize(idx.config.Limits.MaxFileSize)
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("file too large: %d > %d", info.Size(), maxSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := &types.Document{
		Source:  relPath,
		Title:   filepath.Base(relPath),
		Content: content,
	}
	doc.Hash = doc.ComputeHash()

	return doc, nil
}

// indexParallel indexes documents with a worker pool and returns the
// total chunk count.
func (idx *Indexer) indexParallel(ctx context.Context, docs []*types.Document) (int, error) {
	workers := idx.config.Limits.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(docs) {
		workers = len(docs)
	}

	type result struct {
		chunks int
		err    error
	}

	docCh := make(chan *types.Document, len(docs))
	resultCh := make(chan result, len(docs))

	replace := idx.kb.SupportsSourceDeletion()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range docCh {
				if ctx.Err() != nil {
					resultCh <- result{err: ctx.Err()}
					return
				}

				idx.updateProgress("", 0, 0, 0, doc.Source)

				if replace {
					if err := idx.kb.DeleteSource(ctx, doc.Source); err != nil {
						slog.Warn("failed to drop stale chunks", "source", doc.Source, "error", err)
					}
				}

				n, err := idx.kb.IndexDocument(ctx, doc)
				if err != nil {
					resultCh <- result{err: err}
					return
				}

				idx.updateProgress("", 0, 1, n, "")
				resultCh <- result{chunks: n}
			}
		}()
	}

	for _, doc := range docs {
		docCh <- doc
	}
	close(docCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	total := 0
	for res := range resultCh {
		if res.err != nil {
			return 0, res.err
		}
		total += res.chunks
	}

	return total, nil
}

// updateProgress updates the progress state. Processed and chunk counts
// accumulate; totals and phase replace.
func (idx *Indexer) updateProgress(phase string, totalFiles, processedDelta, chunkDelta int, currentFile string) {
	idx.progressMu.Lock()
	defer idx.progressMu.Unlock()

	if phase != "" {
		idx.progress.Phase = phase
	}
	if totalFiles > 0 {
		idx.progress.TotalFiles = totalFiles
	}
	idx.progress.ProcessedFiles += processedDelta
	idx.progress.TotalChunks += chunkDelta
	if currentFile != "" {
		idx.progress.CurrentFile = currentFile
	}

	if idx.onProgress != nil {
		idx.onProgress(idx.progress)
	}
}

// matchGlob matches a path against a glob pattern, with ** for
// recursive matching.
func matchGlob(pattern, path string) bool {
	if strings.Contains(pattern, "**") {
		parts := strings.Split(pattern, "**")
		if len(parts) == 2 {
			prefix := strings.TrimSuffix(parts[0], "/")
			suffix := strings.TrimPrefix(parts[1], "/")

			if prefix != "" && !strings.HasPrefix(path, prefix) {
				return false
			}

			if suffix == "" {
				return true
			}

			if strings.Contains(suffix, "*") {
				base := filepath.Base(path)
				matched, _ := filepath.Match(suffix, base)
				if matched {
					return true
				}
				remaining := path
				if prefix != "" {
					remaining = strings.TrimPrefix(path, prefix)
					remaining = strings.TrimPrefix(remaining, "/")
				}
				matched, _ = filepath.Match(suffix, remaining)
				return matched
			}

			return strings.HasSuffix(path, suffix) || strings.Contains(path, suffix)
		}
	}

	matched, _ := filepath.Match(pattern, path)
	if matched {
		return true
	}

	base := filepath.Base(path)
	matched, _ = filepath.Match(pattern, base)
	return matched
}

// parseSize parses a size string like "1MB" to bytes.
func parseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	var value int64
	_, _ = fmt.Sscanf(s, "%d", &value)

	return value * multiplier
}
