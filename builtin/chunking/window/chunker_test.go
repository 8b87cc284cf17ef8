package window

import (
	"strings"
	"testing"

	"github.com/spetr/matwizard/pkg/types"
)

func TestChunkEmptyDocument(t *testing.T) {
	c := New(Config{})
	chunks, err := c.Chunk(&types.Document{Source: "empty.txt"})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty document, got %d", len(chunks))
	}
}

func TestChunkShortDocument(t *testing.T) {
	c := New(Config{ChunkSize: 800, Overlap: 100})
	doc := &types.Document{
		Source:  "short.txt",
		Content: []byte("a single short paragraph"),
	}

	chunks, err := c.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != string(doc.Content) {
		t.Errorf("chunk content mismatch: %q", chunks[0].Content)
	}
	if chunks[0].Index != 0 {
		t.Errorf("expected index 0, got %d", chunks[0].Index)
	}
	if chunks[0].ID == "" {
		t.Error("chunk ID not generated")
	}
}

func TestChunkOverlap(t *testing.T) {
	c := New(Config{ChunkSize: 10, Overlap: 4})
	doc := &types.Document{
		Source:  "doc.txt",
		Content: []byte("abcdefghijklmnopqrstuvwxyz"),
	}

	chunks, err := c.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Start advances by size-overlap, so each chunk begins with the
	// last overlap characters of the previous one.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev[len(prev)-4:]
		if !strings.HasPrefix(chunks[i].Content, tail) {
			t.Errorf("chunk %d does not overlap previous: %q vs %q", i, tail, chunks[i].Content)
		}
	}

	// All content must be covered.
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(string(doc.Content), last.Content) {
		t.Errorf("last chunk does not end the document: %q", last.Content)
	}
}

func TestChunkIndicesSequential(t *testing.T) {
	c := New(Config{ChunkSize: 5, Overlap: 1})
	doc := &types.Document{Source: "doc.txt", Content: []byte(strings.Repeat("x", 40))}

	chunks, err := c.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if len(chunk.Content) > 5 {
			t.Errorf("chunk %d exceeds size: %d", i, len(chunk.Content))
		}
	}
}

func TestTitleDefaultsToSource(t *testing.T) {
	c := New(Config{})
	chunks, err := c.Chunk(&types.Document{Source: "notes.md", Content: []byte("text")})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if chunks[0].Title != "notes.md" {
		t.Errorf("expected title notes.md, got %q", chunks[0].Title)
	}
}

func TestDefaultsApplied(t *testing.T) {
	c := New(Config{})
	if c.config.ChunkSize != DefaultChunkSize {
		t.Errorf("expected default chunk size %d, got %d", DefaultChunkSize, c.config.ChunkSize)
	}
	if c.config.Overlap != DefaultOverlap {
		t.Errorf("expected default overlap %d, got %d", DefaultOverlap, c.config.Overlap)
	}

	// Overlap must stay below chunk size.
	c = New(Config{ChunkSize: 50, Overlap: 60})
	if c.config.Overlap >= c.config.ChunkSize {
		t.Errorf("overlap %d not clamped below chunk size %d", c.config.Overlap, c.config.ChunkSize)
	}
}
