// Package wizard implements environment detection and configuration
// scaffolding for new projects.
package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spetr/matwizard/internal/config"
)

// DetectEnvironmentResult contains detected environment information.
type DetectEnvironmentResult struct {
	OpenAI    KeyInfo    `json:"openai"`
	Anthropic KeyInfo    `json:"anthropic"`
	Ollama    OllamaInfo `json:"ollama"`
	System    SystemInfo `json:"system"`
	Docs      DocsInfo   `json:"docs"`

	ExistingConfig *config.Config `json:"existing_config,omitempty"`

	Recommendations *Recommendations `json:"recommendations"`
}

// KeyInfo reports whether a provider API key is configured.
type KeyInfo struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// OllamaInfo contains Ollama detection results.
type OllamaInfo struct {
	Available bool        `json:"available"`
	Endpoint  string      `json:"endpoint"`
	Models    []ModelInfo `json:"models,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ModelInfo contains information about an Ollama model.
type ModelInfo struct {
	Name      string `json:"name"`
	Size      string `json:"size"`
	Embedding bool   `json:"embedding"`
}

// SystemInfo contains system information.
type SystemInfo struct {
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	CPUCores int    `json:"cpu_cores"`
	TotalRAM string `json:"total_ram,omitempty"`
}

// DocsInfo contains statistics about the documents directory.
type DocsInfo struct {
	Dir             string         `json:"dir"`
	FileCount       int            `json:"file_count"`
	TotalSize       string         `json:"total_size"`
	ByExtension     map[string]int `json:"by_extension"`
	EstimatedChunks int            `json:"estimated_chunks"`
}

// Recommendations contains recommended settings.
type Recommendations struct {
	LLMProvider       string   `json:"llm_provider"`
	EmbeddingProvider string   `json:"embedding_provider"`
	VectorStore       string   `json:"vector_store"`
	Workers           int      `json:"workers"`
	Reasoning         []string `json:"reasoning"`
}

// Wizard handles environment detection and recommendations.
type Wizard struct {
	projectDir string
}

// New creates a new wizard.
func New(projectDir string) *Wizard {
	return &Wizard{projectDir: projectDir}
}

// DetectEnvironment detects the environment and generates recommendations.
func (w *Wizard) DetectEnvironment(ctx context.Context) (*DetectEnvironmentResult, error) {
	result := &DetectEnvironmentResult{}

	result.OpenAI = detectKey("OPENAI_API_KEY")
	result.Anthropic = detectKey("ANTHROPIC_API_KEY")
	result.Ollama = w.detectOllama(ctx)
	result.System = detectSystem()
	result.Docs = w.detectDocs()

	if cfg, _, err := config.Load(w.projectDir); err == nil {
		result.ExistingConfig = cfg
	}

	result.Recommendations = w.generateRecommendations(result)

	return result, nil
}

// detectKey checks whether an API key environment variable is set.
func detectKey(envVar string) KeyInfo {
	if os.Getenv(envVar) != "" {
		return KeyInfo{Available: true}
	}
	return KeyInfo{Error: envVar + " not set"}
}

// detectOllama checks Ollama availability.
func (w *Wizard) detectOllama(ctx context.Context) OllamaInfo {
	info := OllamaInfo{
		Endpoint: "http://localhost:11434",
	}

	client := &http.Client{Timeout: 5 * time.Second}
	req, _ := http.NewRequestWithContext(ctx, "GET", info.Endpoint+"/api/version", nil)
	resp, err := client.Do(req)
	if err != nil {
		info.Error = "Ollama not running at " + info.Endpoint
		return info
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		info.Error = fmt.Sprintf("Ollama returned status %d", resp.StatusCode)
		return info
	}

	info.Available = true

	req, _ = http.NewRequestWithContext(ctx, "GET", info.Endpoint+"/api/tags", nil)
	resp, err = client.Do(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		defer resp.Body.Close()

		var tagsResp struct {
			Models []struct {
				Name string `json:"name"`
				Size int64  `json:"size"`
			} `json:"models"`
		}

		if json.NewDecoder(resp.Body).Decode(&tagsResp) == nil {
			for _, m := range tagsResp.Models {
				info.Models = append(info.Models, ModelInfo{
					Name:      m.Name,
					Size:      formatBytes(m.Size),
					Embedding: strings.Contains(strings.ToLower(m.Name), "embed"),
				})
			}
		}
	}

	return info
}

// detectSystem gets system information.
func detectSystem() SystemInfo {
	info := SystemInfo{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUCores: runtime.NumCPU(),
	}

	if runtime.GOOS == "linux" {
		out, err := os.ReadFile("/proc/meminfo")
		if err == nil {
			for _, line := range strings.Split(string(out), "\n") {
				if strings.HasPrefix(line, "MemTotal:") {
					var kb int64
					if _, err := fmt.Sscanf(line, "MemTotal: %d kB", &kb); err == nil {
						info.TotalRAM = formatBytes(kb * 1024)
					}
				}
			}
		}
	}

	return info
}

// detectDocs analyzes the documents directory.
func (w *Wizard) detectDocs() DocsInfo {
	docsDir := filepath.Join(w.projectDir, "docs")
	info := DocsInfo{
		Dir:         docsDir,
		ByExtension: make(map[string]int),
	}

	var totalSize int64

	_ = filepath.WalkDir(docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != docsDir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			return nil
		}

		info.ByExtension[ext]++
		info.FileCount++

		if fi, err := d.Info(); err == nil {
			totalSize += fi.Size()
		}

		return nil
	})

	info.TotalSize = formatBytes(totalSize)

	// One chunk per chunk-size characters, rounded up per file.
	chunkSize := int64(config.DefaultConfig().Chunking.ChunkSize)
	info.EstimatedChunks = int(totalSize/chunkSize) + info.FileCount

	return info
}

// generateRecommendations generates configuration recommendations.
func (w *Wizard) generateRecommendations(env *DetectEnvironmentResult) *Recommendations {
	rec := &Recommendations{
		LLMProvider:       "openai",
		EmbeddingProvider: "openai",
		VectorStore:       "memory",
		Workers:           runtime.NumCPU(),
		Reasoning:         []string{},
	}

	switch {
	case env.OpenAI.Available:
		rec.Reasoning = append(rec.Reasoning, "OpenAI API key found, using OpenAI for chat and embeddings")
	case env.Anthropic.Available:
		rec.LLMProvider = "anthropic"
		rec.Reasoning = append(rec.Reasoning, "Anthropic API key found, using Anthropic for chat")
		if env.Ollama.Available {
			rec.EmbeddingProvider = "ollama"
			rec.Reasoning = append(rec.Reasoning, "Using local Ollama embeddings (no OpenAI key)")
		} else {
			rec.Reasoning = append(rec.Reasoning,
				"WARNING: No embedding provider available. Set OPENAI_API_KEY or install Ollama")
		}
	default:
		rec.Reasoning = append(rec.Reasoning,
			"WARNING: No API key found. Set OPENAI_API_KEY or ANTHROPIC_API_KEY")
		if env.Ollama.Available {
			rec.EmbeddingProvider = "ollama"
		}
	}

	if env.Ollama.Available {
		hasEmbedding := false
		for _, m := range env.Ollama.Models {
			if m.Embedding {
				hasEmbedding = true
				break
			}
		}
		if rec.EmbeddingProvider == "ollama" && !hasEmbedding {
			rec.Reasoning = append(rec.Reasoning, "Run: ollama pull nomic-embed-text")
		}
	}

	// Large corpora outlive a single process, so persist the index.
	if env.Docs.EstimatedChunks > 5000 {
		rec.VectorStore = "sqlitevec"
		rec.Reasoning = append(rec.Reasoning,
			fmt.Sprintf("Estimated %d chunks, persisting the index to disk", env.Docs.EstimatedChunks))
	}

	if env.Docs.FileCount == 0 {
		rec.Reasoning = append(rec.Reasoning,
			"No documents found in docs/. Add files before indexing")
	}

	return rec
}

// ValidateConfig validates configuration and tests providers.
func (w *Wizard) ValidateConfig(ctx context.Context, cfg *config.Config) (*ValidateResult, error) {
	result := &ValidateResult{
		Valid: true,
		Tests: make(map[string]TestResult),
	}

	errs := config.Validate(cfg)
	for _, err := range errs {
		result.Errors = append(result.Errors, err.Error())
		result.Valid = false
	}

	if cfg.Embedding.Provider == "ollama" {
		endpoint := cfg.Embedding.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:11434"
		}

		client := &http.Client{Timeout: 5 * time.Second}
		req, _ := http.NewRequestWithContext(ctx, "GET", endpoint+"/api/version", nil)
		resp, err := client.Do(req)
		if err != nil {
			result.Tests["ollama_connection"] = TestResult{
				Status:  "error",
				Message: "Cannot connect to Ollama: " + err.Error(),
			}
			result.Valid = false
		} else {
			resp.Body.Close()
			result.Tests["ollama_connection"] = TestResult{
				Status:  "ok",
				Message: "Connected to Ollama",
			}
		}

		if result.Tests["ollama_connection"].Status == "ok" {
			reqBody := map[string]any{"name": cfg.Embedding.Model}
			jsonBody, _ := json.Marshal(reqBody)

			req, _ := http.NewRequestWithContext(ctx, "POST", endpoint+"/api/show", bytes.NewReader(jsonBody))
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)

			if err != nil || resp.StatusCode != http.StatusOK {
				result.Tests["embedding_model"] = TestResult{
					Status:  "error",
					Message: fmt.Sprintf("Model %s not found. Run: ollama pull %s", cfg.Embedding.Model, cfg.Embedding.Model),
				}
				result.Warnings = append(result.Warnings, "Embedding model not available")
			} else {
				resp.Body.Close()
				result.Tests["embedding_model"] = TestResult{
					Status:  "ok",
					Message: "Model " + cfg.Embedding.Model + " available",
				}
			}
		}
	}

	if cfg.LLM.Provider == "openai" && os.Getenv("OPENAI_API_KEY") == "" && cfg.LLM.APIKey == "" {
		result.Warnings = append(result.Warnings, "OPENAI_API_KEY not set")
	}
	if cfg.LLM.Provider == "anthropic" && os.Getenv("ANTHROPIC_API_KEY") == "" && cfg.LLM.APIKey == "" {
		result.Warnings = append(result.Warnings, "ANTHROPIC_API_KEY not set")
	}

	return result, nil
}

// ValidateResult contains validation results.
type ValidateResult struct {
	Valid    bool                  `json:"valid"`
	Errors   []string              `json:"errors"`
	Warnings []string              `json:"warnings"`
	Tests    map[string]TestResult `json:"tests"`
}

// TestResult contains a single test result.
type TestResult struct {
	Status  string `json:"status"` // "ok", "error", "warning", "skipped"
	Message string `json:"message"`
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.0f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.0f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
