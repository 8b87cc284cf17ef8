// Package builtin registers all built-in providers with the default registry.
package builtin

import (
	windowChunker "github.com/spetr/matwizard/builtin/chunking/window"
	ollamaEmbed "github.com/spetr/matwizard/builtin/embedding/ollama"
	openaiEmbed "github.com/spetr/matwizard/builtin/embedding/openai"
	anthropicLLM "github.com/spetr/matwizard/builtin/llm/anthropic"
	openaiLLM "github.com/spetr/matwizard/builtin/llm/openai"
	"github.com/spetr/matwizard/builtin/vectorstore/memory"
	"github.com/spetr/matwizard/builtin/vectorstore/sqlitevec"
	"github.com/spetr/matwizard/pkg/provider"
)

func init() {
	// Register embedding providers
	provider.RegisterEmbedding("openai", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return openaiEmbed.New(openaiEmbed.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
		}), nil
	})

	provider.RegisterEmbedding("ollama", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return ollamaEmbed.New(ollamaEmbed.Config{
			Endpoint:  cfg.Endpoint,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
		}), nil
	})

	// Register LLM providers
	provider.RegisterLLM("openai", func(cfg provider.LLMConfig) (provider.Completer, error) {
		return openaiLLM.New(openaiLLM.Config{
			Model:       cfg.Model,
			SearchModel: cfg.SearchModel,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	})

	provider.RegisterLLM("anthropic", func(cfg provider.LLMConfig) (provider.Completer, error) {
		return anthropicLLM.New(anthropicLLM.Config{
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
		}), nil
	})

	// Register chunking strategies
	provider.RegisterChunking("window", func(cfg provider.ChunkingConfig) (provider.ChunkingStrategy, error) {
		return windowChunker.New(windowChunker.Config{
			ChunkSize: cfg.ChunkSize,
			Overlap:   cfg.Overlap,
		}), nil
	})

	// Register vector stores
	provider.RegisterVectorStore("memory", func() (provider.VectorStore, error) {
		return memory.New(), nil
	})

	provider.RegisterVectorStore("sqlitevec", func() (provider.VectorStore, error) {
		return sqlitevec.New(), nil
	})
}
