// Package window implements fixed-size overlapping window chunking.
// Adjacent chunks share a configurable number of characters so that
// sentences spanning a boundary stay retrievable.
package window

import (
	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// Default values
const (
	DefaultChunkSize = 800
	DefaultOverlap   = 100
)

// Config contains configuration for window chunking.
type Config struct {
	ChunkSize int // Characters per chunk
	Overlap   int // Characters shared between adjacent chunks
}

// Chunker implements fixed-size overlapping window chunking.
type Chunker struct {
	config Config
}

// New creates a new window chunker.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Overlap <= 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = DefaultOverlap
		if cfg.Overlap >= cfg.ChunkSize {
			cfg.Overlap = cfg.ChunkSize / 8
		}
	}
	return &Chunker{config: cfg}
}

// Name returns the strategy name.
func (c *Chunker) Name() string {
	return "window"
}

// Chunk splits a document into overlapping windows. Each window is at
// most ChunkSize characters and the start advances by ChunkSize-Overlap.
// An empty document yields no chunks.
func (c *Chunker) Chunk(doc *types.Document) ([]*types.Chunk, error) {
	content := string(doc.Content)
	if len(content) == 0 {
		return nil, nil
	}

	title := doc.Title
	if title == "" {
		title = doc.Source
	}

	step := c.config.ChunkSize - c.config.Overlap

	var chunks []*types.Chunk
	for i, index := 0, 0; i < len(content); i, index = i+step, index+1 {
		end := i + c.config.ChunkSize
		if end > len(content) {
			end = len(content)
		}

		chunk := &types.Chunk{
			Source:  doc.Source,
			Title:   title,
			Index:   index,
			Content: content[i:end],
		}
		chunk.ID = chunk.GenerateID()
		chunks = append(chunks, chunk)

		if end == len(content) {
			break
		}
	}

	return chunks, nil
}

// Close releases resources.
func (c *Chunker) Close() error {
	return nil
}

// Ensure Chunker implements ChunkingStrategy interface
var _ provider.ChunkingStrategy = (*Chunker)(nil)
