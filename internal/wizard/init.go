package wizard

import (
	"fmt"
	"strings"

	"github.com/spetr/matwizard/internal/config"
)

// ApplyPreset applies a preset configuration.
func (w *Wizard) ApplyPreset(env *DetectEnvironmentResult, preset string) *config.Config {
	cfg := config.DefaultConfig()

	switch preset {
	case "recommended":
		if env.Recommendations != nil {
			rec := env.Recommendations
			cfg.LLM.Provider = rec.LLMProvider
			if rec.LLMProvider == "anthropic" {
				cfg.LLM.Model = "claude-3-5-sonnet-20241022"
			}
			cfg.Embedding.Provider = rec.EmbeddingProvider
			if rec.EmbeddingProvider == "ollama" {
				cfg.Embedding.Model = "nomic-embed-text"
				cfg.Embedding.Endpoint = "http://localhost:11434"
			}
			cfg.VectorStore.Provider = rec.VectorStore
			if rec.VectorStore == "sqlitevec" {
				cfg.VectorStore.Path = config.IndexDBPath(w.projectDir)
			}
			cfg.Limits.Workers = rec.Workers
		}

	case "persistent":
		cfg.VectorStore.Provider = "sqlitevec"
		cfg.VectorStore.Path = config.IndexDBPath(w.projectDir)

	case "local":
		cfg.Embedding.Provider = "ollama"
		cfg.Embedding.Model = "nomic-embed-text"
		cfg.Embedding.Endpoint = "http://localhost:11434"
		cfg.Embedding.BatchSize = 32

	default:
		// Use defaults
	}

	return cfg
}

// FormatEnvironmentSummary returns a formatted summary of the detected environment.
func FormatEnvironmentSummary(env *DetectEnvironmentResult) string {
	var sb strings.Builder

	sb.WriteString("=== Environment ===\n")

	if env.OpenAI.Available {
		sb.WriteString("OpenAI: API key configured\n")
	} else {
		sb.WriteString("OpenAI: not configured\n")
	}
	if env.Anthropic.Available {
		sb.WriteString("Anthropic: API key configured\n")
	} else {
		sb.WriteString("Anthropic: not configured\n")
	}

	if env.Ollama.Available {
		sb.WriteString(fmt.Sprintf("Ollama: running at %s\n", env.Ollama.Endpoint))
		for _, m := range env.Ollama.Models {
			kind := "llm"
			if m.Embedding {
				kind = "embedding"
			}
			sb.WriteString(fmt.Sprintf("  %s (%s, %s)\n", m.Name, kind, m.Size))
		}
	} else {
		sb.WriteString("Ollama: not running\n")
	}

	sb.WriteString(fmt.Sprintf("System: %s/%s, %d cores", env.System.OS, env.System.Arch, env.System.CPUCores))
	if env.System.TotalRAM != "" {
		sb.WriteString(fmt.Sprintf(", %s RAM", env.System.TotalRAM))
	}
	sb.WriteString("\n")

	sb.WriteString("\n=== Documents ===\n")
	sb.WriteString(fmt.Sprintf("Directory: %s\n", env.Docs.Dir))
	sb.WriteString(fmt.Sprintf("Files: %d (%s)\n", env.Docs.FileCount, env.Docs.TotalSize))
	if env.Docs.FileCount > 0 {
		sb.WriteString(fmt.Sprintf("Estimated chunks: %d\n", env.Docs.EstimatedChunks))
		for ext, count := range env.Docs.ByExtension {
			sb.WriteString(fmt.Sprintf("  %s: %d files\n", ext, count))
		}
	}

	if env.Recommendations != nil && len(env.Recommendations.Reasoning) > 0 {
		sb.WriteString("\n=== Notes ===\n")
		for _, r := range env.Recommendations.Reasoning {
			sb.WriteString(fmt.Sprintf("- %s\n", r))
		}
	}

	return sb.String()
}

// FormatConfigSummary returns a formatted summary of the configuration.
func FormatConfigSummary(cfg *config.Config) string {
	var sb strings.Builder

	sb.WriteString("=== Configuration ===\n")
	sb.WriteString(fmt.Sprintf("LLM:       %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model))
	sb.WriteString(fmt.Sprintf("Embedding: %s/%s\n", cfg.Embedding.Provider, cfg.Embedding.Model))
	sb.WriteString(fmt.Sprintf("Chunking:  %s (%d chars, %d overlap)\n",
		cfg.Chunking.Strategy, cfg.Chunking.ChunkSize, cfg.Chunking.Overlap))
	sb.WriteString(fmt.Sprintf("Store:     %s\n", cfg.VectorStore.Provider))
	sb.WriteString(fmt.Sprintf("Docs:      %s\n", cfg.Docs.Dir))

	return sb.String()
}
