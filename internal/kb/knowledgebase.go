// Package kb implements the retrieval-augmented knowledge base: chunked
// document indexing, embedding search, and context injection for chat
// completions.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// DefaultTopK is the number of chunks retrieved when the caller does
// not specify a limit.
const DefaultTopK = 5

// KnowledgeBase ties a chunking strategy, an embedding provider, and a
// vector store into a searchable document index.
type KnowledgeBase struct {
	store    provider.VectorStore
	embedder provider.EmbeddingProvider
	chunker  provider.ChunkingStrategy
	topK     int
}

// Config contains knowledge base configuration.
type Config struct {
	Store     provider.VectorStore
	Embedding provider.EmbeddingProvider
	Chunker   provider.ChunkingStrategy
	TopK      int
}

// New creates a knowledge base.
func New(cfg Config) *KnowledgeBase {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &KnowledgeBase{
		store:    cfg.Store,
		embedder: cfg.Embedding,
		chunker:  cfg.Chunker,
		topK:     topK,
	}
}

// IndexDocument chunks, embeds, and stores a document. It returns the
// number of chunks added. An empty document adds nothing.
func (kb *KnowledgeBase) IndexDocument(ctx context.Context, doc *types.Document) (int, error) {
	chunks, err := kb.chunker.Chunk(doc)
	if err != nil {
		return 0, fmt.Errorf("chunking %s failed: %w", doc.Source, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	batchSize := kb.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	withEmbeddings := make([]*types.ChunkWithEmbedding, 0, len(chunks))
	for i := 0; i < len(chunks); i += batchSize {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := chunks[i:end]
		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Content
		}

		embeddings, err := kb.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding %s failed: %w", doc.Source, err)
		}
		if len(embeddings) != len(batch) {
			return 0, fmt.Errorf("embedding %s: got %d vectors for %d chunks: %w",
				doc.Source, len(embeddings), len(batch), types.ErrEmbeddingFailed)
		}

		for j, chunk := range batch {
			withEmbeddings = append(withEmbeddings, &types.ChunkWithEmbedding{
				Chunk:     chunk,
				Embedding: embeddings[j],
			})
		}
	}

	if err := kb.store.Add(ctx, withEmbeddings); err != nil {
		return 0, fmt.Errorf("storing %s failed: %w", doc.Source, err)
	}

	slog.Debug("document indexed", "source", doc.Source, "chunks", len(withEmbeddings))
	return len(withEmbeddings), nil
}

// Search embeds the query and returns up to topK chunks ranked by
// descending similarity. topK <= 0 uses the configured default.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, topK int) ([]*types.SearchResult, error) {
	if topK <= 0 {
		topK = kb.topK
	}
	if kb.store.Size() == 0 {
		return []*types.SearchResult{}, nil
	}

	embeddings, err := kb.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("query embedding: got %d vectors: %w", len(embeddings), types.ErrEmbeddingFailed)
	}

	return kb.store.Search(ctx, embeddings[0], topK)
}

// Clear removes all indexed chunks.
func (kb *KnowledgeBase) Clear(ctx context.Context) error {
	return kb.store.Clear(ctx)
}

// Size returns the number of indexed chunks.
func (kb *KnowledgeBase) Size() int {
	return kb.store.Size()
}

// Stats returns store statistics.
func (kb *KnowledgeBase) Stats() (*types.StoreStats, error) {
	return kb.store.Stats()
}

// SupportsSourceDeletion reports whether the underlying store can
// remove chunks per source.
func (kb *KnowledgeBase) SupportsSourceDeletion() bool {
	_, ok := kb.store.(provider.SourceDeleter)
	return ok
}

// DeleteSource removes all chunks from a source if the underlying
// store supports per-source deletion.
func (kb *KnowledgeBase) DeleteSource(ctx context.Context, source string) error {
	deleter, ok := kb.store.(provider.SourceDeleter)
	if !ok {
		return fmt.Errorf("store %s does not support source deletion: %w", kb.store.Name(), types.ErrStoreFailed)
	}
	return deleter.DeleteBySource(ctx, source)
}

// BuildContextMessage formats retrieved chunks as a system message. One
// line per chunk, prefixed with its source.
func BuildContextMessage(results []*types.SearchResult) types.Message {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("[Source: %s] %s", r.Chunk.Source, r.Chunk.Content)
	}
	return types.Message{
		Role:    types.RoleSystem,
		Content: "Relevant context:\n" + strings.Join(lines, "\n"),
	}
}

// CompleteWithKnowledge retrieves context for the query, prepends it as
// a system message, and completes. The caller's message slice is not
// modified. With an empty knowledge base the completion runs without
// injected context.
func (kb *KnowledgeBase) CompleteWithKnowledge(ctx context.Context, llm provider.Completer, messages []types.Message, query string, topK int) (string, error) {
	results, err := kb.Search(ctx, query, topK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return llm.Complete(ctx, messages)
	}

	augmented := make([]types.Message, 0, len(messages)+1)
	augmented = append(augmented, BuildContextMessage(results))
	augmented = append(augmented, messages...)

	return llm.Complete(ctx, augmented)
}
