package memory

import (
	"context"
	"math"
	"testing"

	"github.com/spetr/matwizard/pkg/types"
)

func chunk(id string, embedding []float32) *types.ChunkWithEmbedding {
	return &types.ChunkWithEmbedding{
		Chunk:     &types.Chunk{ID: id, Source: "test", Content: id},
		Embedding: embedding,
	}
}

func TestSearchEmptyStore(t *testing.T) {
	s := New()
	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result set, got %d", len(results))
	}
}

func TestAddGrowsSize(t *testing.T) {
	s := New()
	ctx := context.Background()

	if s.Size() != 0 {
		t.Fatalf("new store not empty: %d", s.Size())
	}

	if err := s.Add(ctx, []*types.ChunkWithEmbedding{chunk("a", []float32{1, 0})}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if s.Size() != 1 {
		t.Errorf("expected size 1, got %d", s.Size())
	}

	// No dedup: re-adding the same chunk grows the store.
	if err := s.Add(ctx, []*types.ChunkWithEmbedding{chunk("a", []float32{1, 0})}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if s.Size() != 2 {
		t.Errorf("expected size 2 after duplicate add, got %d", s.Size())
	}
}

func TestClearIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Add(ctx, []*types.ChunkWithEmbedding{
		chunk("a", []float32{1, 0}),
		chunk("b", []float32{0, 1}),
	})

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if s.Size() != 0 {
		t.Errorf("expected empty store after Clear, got %d", s.Size())
	}

	// Clearing again must not fail.
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
	if s.Size() != 0 {
		t.Errorf("expected empty store after second Clear, got %d", s.Size())
	}
}

func TestSearchTopKBound(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Add(ctx, []*types.ChunkWithEmbedding{
		chunk("a", []float32{1, 0}),
		chunk("b", []float32{0.9, 0.1}),
		chunk("c", []float32{0, 1}),
	})

	results, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "a" {
		t.Errorf("expected best match a, got %s", results[0].Chunk.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending order at %d", i)
		}
	}

	// topK larger than the store returns everything.
	results, _ = s.Search(ctx, []float32{1, 0}, 10)
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Identical embeddings produce identical scores.
	s.Add(ctx, []*types.ChunkWithEmbedding{
		chunk("first", []float32{1, 1}),
		chunk("second", []float32{1, 1}),
		chunk("third", []float32{1, 1}),
	})

	results, err := s.Search(ctx, []float32{1, 1}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if results[i].Chunk.ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, results[i].Chunk.ID)
		}
	}
}

func TestZeroNormScoresZero(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Add(ctx, []*types.ChunkWithEmbedding{
		chunk("zero", []float32{0, 0}),
		chunk("unit", []float32{1, 0}),
	})

	results, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results[0].Chunk.ID != "unit" {
		t.Errorf("expected unit first, got %s", results[0].Chunk.ID)
	}
	if results[1].Score != 0 {
		t.Errorf("expected zero-norm chunk to score 0, got %v", results[1].Score)
	}

	// Zero-norm query scores everything 0.
	results, _ = s.Search(ctx, []float32{0, 0}, 2)
	for _, r := range results {
		if r.Score != 0 {
			t.Errorf("expected 0 score for zero-norm query, got %v", r.Score)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSelfSimilarityNearOne(t *testing.T) {
	v := []float32{0.3, -0.7, 0.2, 0.64}
	if got := CosineSimilarity(v, v); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("self-similarity = %v, want 1.0", got)
	}
}

func TestStats(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := chunk("a", []float32{1, 0, 0})
	a.Chunk.Source = "doc1"
	b := chunk("b", []float32{0, 1, 0})
	b.Chunk.Source = "doc1"
	c := chunk("c", []float32{0, 0, 1})
	c.Chunk.Source = "doc2"
	s.Add(ctx, []*types.ChunkWithEmbedding{a, b, c})

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalChunks != 3 {
		t.Errorf("expected 3 chunks, got %d", stats.TotalChunks)
	}
	if stats.TotalSources != 2 {
		t.Errorf("expected 2 sources, got %d", stats.TotalSources)
	}
	if stats.Dimensions != 3 {
		t.Errorf("expected 3 dimensions, got %d", stats.Dimensions)
	}
}
