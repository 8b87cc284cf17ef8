// Package memory implements an in-memory vector store with brute-force
// cosine search. It is the default backend for the knowledge base.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// Store is an append-only in-memory vector store.
type Store struct {
	mu          sync.RWMutex
	chunks      []*types.ChunkWithEmbedding
	lastIndexed time.Time
}

// New creates a new empty in-memory store.
func New() *Store {
	return &Store{}
}

// Name returns the store name.
func (s *Store) Name() string {
	return "memory"
}

// Init prepares the store. The memory store needs no setup.
func (s *Store) Init(ctx context.Context, cfg provider.VectorStoreConfig) error {
	return nil
}

// Add appends chunks with their embeddings. No deduplication is done;
// adding the same document twice doubles its chunks.
func (s *Store) Add(ctx context.Context, chunks []*types.ChunkWithEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	s.lastIndexed = time.Now()
	return nil
}

// Search returns up to topK chunks ranked by descending cosine similarity.
// Ties keep insertion order. An empty store returns an empty slice.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]*types.SearchResult, error) {
	if topK <= 0 {
		return []*types.SearchResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*types.SearchResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		results = append(results, &types.SearchResult{
			Chunk: c.Chunk,
			Score: CosineSimilarity(embedding, c.Embedding),
		})
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Clear removes all stored chunks. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	return nil
}

// Size returns the number of stored chunks.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Stats returns store statistics.
func (s *Store) Stats() (*types.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make(map[string]struct{})
	dims := 0
	for _, c := range s.chunks {
		sources[c.Chunk.Source] = struct{}{}
		if dims == 0 {
			dims = len(c.Embedding)
		}
	}

	return &types.StoreStats{
		TotalChunks:  len(s.chunks),
		TotalSources: len(sources),
		Dimensions:   dims,
		LastIndexed:  s.lastIndexed,
	}, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths and zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Ensure Store implements VectorStore interface
var _ provider.VectorStore = (*Store)(nil)
