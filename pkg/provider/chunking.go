package provider

import (
	"github.com/spetr/matwizard/pkg/types"
)

// ChunkingStrategy splits documents into chunks.
type ChunkingStrategy interface {
	// Name returns the strategy name (e.g., "window").
	Name() string

	// Chunk splits a document into chunks.
	Chunk(doc *types.Document) ([]*types.Chunk, error)

	// Close releases any resources.
	Close() error
}

// ChunkingConfig contains configuration for chunking strategies.
type ChunkingConfig struct {
	Strategy  string // "window"
	ChunkSize int    // Characters per chunk
	Overlap   int    // Characters shared between adjacent chunks
}
