package provider

import (
	"context"

	"github.com/spetr/matwizard/pkg/types"
)

// VectorStore stores and searches vector embeddings.
type VectorStore interface {
	// Name returns the store name (e.g., "memory", "sqlitevec").
	Name() string

	// Init prepares the store for use.
	Init(ctx context.Context, cfg VectorStoreConfig) error

	// Add appends chunks with their embeddings. No deduplication is
	// performed; re-adding a document grows the store.
	Add(ctx context.Context, chunks []*types.ChunkWithEmbedding) error

	// Search returns up to topK chunks ranked by descending cosine
	// similarity to the query embedding. Ties keep insertion order.
	// An empty store returns an empty slice, not an error.
	Search(ctx context.Context, embedding []float32, topK int) ([]*types.SearchResult, error)

	// Clear removes all stored chunks. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error

	// Size returns the number of stored chunks.
	Size() int

	// Stats returns store statistics.
	Stats() (*types.StoreStats, error)

	// Close releases any resources.
	Close() error
}

// SourceDeleter is implemented by stores that can remove chunks per source.
// The watcher uses it to drop chunks of deleted or re-indexed files.
type SourceDeleter interface {
	DeleteBySource(ctx context.Context, source string) error
}

// VectorStoreConfig contains configuration for vector stores.
type VectorStoreConfig struct {
	Provider string // "memory", "sqlitevec"
	Path     string // Database file path (sqlitevec only)
}
