package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spetr/matwizard/builtin/chunking/window"
	"github.com/spetr/matwizard/builtin/vectorstore/memory"
	"github.com/spetr/matwizard/internal/config"
	"github.com/spetr/matwizard/internal/kb"
	"github.com/spetr/matwizard/pkg/types"
)

// hashEmbedder is a deterministic offline embedder for indexer tests.
type hashEmbedder struct{}

func (hashEmbedder) Name() string      { return "hash" }
func (hashEmbedder) Dimensions() int   { return 8 }
func (hashEmbedder) MaxBatchSize() int { return 32 }

func (hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 8)
		for j, r := range text {
			vec[j%8] += float32(r)
		}
		out[i] = vec
	}
	return out, nil
}

func (hashEmbedder) Warmup(ctx context.Context) error { return nil }
func (hashEmbedder) Close() error                     { return nil }

func newTestIndexer(t *testing.T, dir string) (*Indexer, *kb.KnowledgeBase) {
	t.Helper()

	knowledge := kb.New(kb.Config{
		Store:     memory.New(),
		Embedding: hashEmbedder{},
		Chunker:   window.New(window.Config{ChunkSize: 200, Overlap: 20}),
	})

	cfg := config.DefaultConfig()
	cfg.Docs.Include = []string{"**/*.md", "**/*.txt"}
	cfg.Docs.Exclude = []string{"drafts/**"}

	return New(Config{
		DocsDir: dir,
		Config:  cfg,
		KB:      knowledge,
	}), knowledge
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIndexMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "alloys.md", "Nickel superalloys resist creep at high temperature.")
	writeFile(t, dir, "notes/process.txt", "Cooling rate controls grain refinement.")
	writeFile(t, dir, "data.csv", "not,indexed")
	writeFile(t, dir, "drafts/wip.md", "unfinished notes")

	idx, knowledge := newTestIndexer(t, dir)

	stats, err := idx.Index(context.Background())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	if stats.Files != 2 {
		t.Errorf("indexed %d files, want 2", stats.Files)
	}
	if stats.Chunks == 0 || knowledge.Size() != stats.Chunks {
		t.Errorf("chunk accounting off: stats=%d store=%d", stats.Chunks, knowledge.Size())
	}

	results, err := knowledge.Search(context.Background(), "grain refinement cooling", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("indexed content not searchable")
	}
}

func TestIndexEmptyDirectory(t *testing.T) {
	idx, _ := newTestIndexer(t, t.TempDir())

	stats, err := idx.Index(context.Background())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if stats.Files != 0 || stats.Chunks != 0 {
		t.Errorf("unexpected stats for empty dir: %+v", stats)
	}
}

func TestIndexSkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".cache/secret.md", "hidden")
	writeFile(t, dir, "visible.md", "indexed content")

	idx, _ := newTestIndexer(t, dir)

	stats, err := idx.Index(context.Background())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if stats.Files != 1 {
		t.Errorf("indexed %d files, want 1", stats.Files)
	}
}

func TestIndexRespectsMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "huge.md", strings.Repeat("x", 2048))
	writeFile(t, dir, "small.md", "short note")

	idx, _ := newTestIndexer(t, dir)
	idx.config.Limits.MaxFileSize = "1KB"

	stats, err := idx.Index(context.Background())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if stats.Files != 1 {
		t.Errorf("indexed %d files, want 1 (oversized file skipped)", stats.Files)
	}
}

func TestIndexReportsProgress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "first document")
	writeFile(t, dir, "b.md", "second document")

	var phases []string
	knowledge := kb.New(kb.Config{
		Store:     memory.New(),
		Embedding: hashEmbedder{},
		Chunker:   window.New(window.Config{}),
	})
	cfg := config.DefaultConfig()
	cfg.Docs.Include = []string{"**/*.md"}

	idx := New(Config{
		DocsDir: dir,
		Config:  cfg,
		KB:      knowledge,
		OnProgress: func(p types.IndexProgress) {
			phases = append(phases, p.Phase)
		},
	})

	if _, err := idx.Index(context.Background()); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	if len(phases) == 0 || phases[0] != "scanning" {
		t.Errorf("scanning phase not reported: %v", phases)
	}
	last := phases[len(phases)-1]
	if last != "indexing" {
		t.Errorf("final phase = %q, want indexing", last)
	}
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"**/*.md", "notes/deep/file.md", true},
		{"**/*.md", "file.md", true},
		{"**/*.md", "file.txt", false},
		{"drafts/**", "drafts/a.md", true},
		{"drafts/**", "published/a.md", false},
		{"*.txt", "readme.txt", true},
		{"*.txt", "sub/readme.txt", true}, // basename match
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.path, func(t *testing.T) {
			if got := matchGlob(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchGlob(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1KB", 1024},
		{"2MB", 2 * 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"512B", 512},
		{"100", 100},
	}

	for _, tt := range tests {
		if got := parseSize(tt.in); got != tt.want {
			t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
