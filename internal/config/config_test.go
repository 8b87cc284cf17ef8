package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("default config does not validate: %v", errs)
	}
}

func TestValidateLLMProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantErr  bool
	}{
		{"openai", false},
		{"anthropic", false},
		{"", true},
		{"gemini", true},
		{"OpenAI", true}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LLM.Provider = tt.provider
			errs := Validate(cfg)

			hasErr := len(errs) > 0
			if hasErr != tt.wantErr {
				t.Errorf("Validate(LLM.Provider=%q) hasErr=%v, want %v", tt.provider, hasErr, tt.wantErr)
			}
		})
	}
}

func TestValidateAgentLocalSource(t *testing.T) {
	tests := []struct {
		source  string
		wantErr bool
	}{
		{"kb", false},
		{"filestore", false},
		{"web", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Agent.LocalSource = tt.source
			errs := Validate(cfg)

			hasErr := len(errs) > 0
			if hasErr != tt.wantErr {
				t.Errorf("Validate(Agent.LocalSource=%q) hasErr=%v, want %v", tt.source, hasErr, tt.wantErr)
			}
		})
	}
}

func TestValidateChunkingOverlap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunking.ChunkSize = 100
	cfg.Chunking.Overlap = 100
	if errs := Validate(cfg); len(errs) == 0 {
		t.Error("expected error for overlap equal to chunk size")
	}

	cfg.Chunking.Overlap = 150
	if errs := Validate(cfg); len(errs) == 0 {
		t.Error("expected error for overlap above chunk size")
	}
}

func TestValidateSqlitevecRequiresPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VectorStore.Provider = "sqlitevec"
	cfg.VectorStore.Path = ""
	if errs := Validate(cfg); len(errs) == 0 {
		t.Error("expected error for sqlitevec without path")
	}

	cfg.VectorStore.Path = "/tmp/index.db"
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestValidatePluginEmbeddingProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "plugin:custom-embed"
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("plugin provider rejected: %v", errs)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning about missing config")
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected default provider openai, got %q", cfg.LLM.Provider)
	}
	if cfg.Chunking.ChunkSize != 800 || cfg.Chunking.Overlap != 100 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Search.TopK != 5 {
		t.Errorf("expected default top_k 5, got %d", cfg.Search.TopK)
	}
}

func TestLoadBackfillsMissingValues(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, ".matwizard")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}

	partial := []byte("llm:\n  provider: anthropic\nsearch:\n  top_k: 3\n")
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), partial, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("model not backfilled for anthropic: %q", cfg.LLM.Model)
	}
	if cfg.Search.TopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Search.TopK)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("embedding model not backfilled: %q", cfg.Embedding.Model)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.LLM.Provider = "anthropic"
	cfg.Search.TopK = 7

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LLM.Provider != "anthropic" {
		t.Errorf("provider not persisted: %q", loaded.LLM.Provider)
	}
	if loaded.Search.TopK != 7 {
		t.Errorf("top_k not persisted: %d", loaded.Search.TopK)
	}
}

func TestHashChangesWithChunking(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a.Hash() != b.Hash() {
		t.Error("identical configs should hash equal")
	}

	b.Chunking.ChunkSize = 400
	if a.Hash() == b.Hash() {
		t.Error("chunk size change should change the hash")
	}
}

func TestCopyIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Copy()

	clone.Docs.Include[0] = "**/*.changed"
	if cfg.Docs.Include[0] == "**/*.changed" {
		t.Error("Copy shares the include slice")
	}
}
