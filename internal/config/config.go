// Package config handles configuration loading and validation.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete configuration.
type Config struct {
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	Chunking    ChunkingConfig    `mapstructure:"chunking" yaml:"chunking"`
	Search      SearchConfig      `mapstructure:"search" yaml:"search"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore" yaml:"vectorstore"`
	Agent       AgentConfig       `mapstructure:"agent" yaml:"agent"`
	Docs        DocsConfig        `mapstructure:"docs" yaml:"docs"`
	Limits      LimitsConfig      `mapstructure:"limits" yaml:"limits"`
	Simulation  SimulationConfig  `mapstructure:"simulation" yaml:"simulation"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider    string `mapstructure:"provider" yaml:"provider"`         // openai, anthropic
	Model       string `mapstructure:"model" yaml:"model"`               // chat model
	SearchModel string `mapstructure:"search_model" yaml:"search_model"` // web-search model (openai)
	APIKey      string `mapstructure:"api_key" yaml:"api_key"`           // API key (falls back to env)
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`         // custom endpoint
	MaxTokens   int    `mapstructure:"max_tokens" yaml:"max_tokens"`     // completion token limit
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`     // openai, ollama, or a plugin name
	Model     string `mapstructure:"model" yaml:"model"`           // model name
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`     // API endpoint (ollama)
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"` // documents per batch
}

// ChunkingConfig contains chunking strategy configuration.
type ChunkingConfig struct {
	Strategy  string `mapstructure:"strategy" yaml:"strategy"`     // window
	ChunkSize int    `mapstructure:"chunk_size" yaml:"chunk_size"` // characters per chunk
	Overlap   int    `mapstructure:"overlap" yaml:"overlap"`       // characters shared between chunks
}

// SearchConfig contains retrieval configuration.
type SearchConfig struct {
	TopK int `mapstructure:"top_k" yaml:"top_k"` // default result count
}

// VectorStoreConfig contains vector store configuration.
type VectorStoreConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // memory, sqlitevec
	Path     string `mapstructure:"path" yaml:"path"`         // database path (sqlitevec)
}

// AgentConfig contains knowledge agent configuration.
type AgentConfig struct {
	// LocalSource selects the local retrieval path: "kb" uses the
	// vector store, "filestore" uses provider-side file search.
	LocalSource string `mapstructure:"local_source" yaml:"local_source"`

	// FallbackOnError makes the agent fall back to web search when the
	// local path fails, instead of propagating the error.
	FallbackOnError bool `mapstructure:"fallback_on_error" yaml:"fallback_on_error"`
}

// DocsConfig contains document indexing configuration.
type DocsConfig struct {
	Dir     string   `mapstructure:"dir" yaml:"dir"`         // documents directory
	Include []string `mapstructure:"include" yaml:"include"` // glob patterns to include
	Exclude []string `mapstructure:"exclude" yaml:"exclude"` // glob patterns to exclude
}

// LimitsConfig contains resource limits.
type LimitsConfig struct {
	MaxFileSize string        `mapstructure:"max_file_size" yaml:"max_file_size"` // e.g., "1MB"
	MaxFiles    int           `mapstructure:"max_files" yaml:"max_files"`         // max files to index
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`             // indexing timeout
	Workers     int           `mapstructure:"workers" yaml:"workers"`             // parallel workers
}

// SimulationConfig contains optimization loop configuration.
type SimulationConfig struct {
	Iterations         int     `mapstructure:"iterations" yaml:"iterations"`                     // loop length
	InitialCoolingRate float64 `mapstructure:"initial_cooling_rate" yaml:"initial_cooling_rate"` // K/min
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			SearchModel: "gpt-4o-mini-search-preview",
			MaxTokens:   1024,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 100,
		},
		Chunking: ChunkingConfig{
			Strategy:  "window",
			ChunkSize: 800,
			Overlap:   100,
		},
		Search: SearchConfig{
			TopK: 5,
		},
		VectorStore: VectorStoreConfig{
			Provider: "memory",
		},
		Agent: AgentConfig{
			LocalSource:     "kb",
			FallbackOnError: false,
		},
		Docs: DocsConfig{
			Dir: "docs",
			Include: []string{
				"**/*.txt", "**/*.md", "**/*.markdown", "**/*.rst",
				"**/*.csv", "**/*.json", "**/*.yaml", "**/*.yml",
			},
			Exclude: []string{
				"**/.git/**", "**/node_modules/**", "**/vendor/**",
			},
		},
		Limits: LimitsConfig{
			MaxFileSize: "1MB",
			MaxFiles:    10000,
			Timeout:     30 * time.Minute,
			Workers:     0, // 0 = use runtime.NumCPU()
		},
		Simulation: SimulationConfig{
			Iterations:         5,
			InitialCoolingRate: 15.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigDir returns the path to the .matwizard directory.
func ConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".matwizard")
}

// ConfigPath returns the path to config.yaml.
func ConfigPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "config.yaml")
}

// IndexDBPath returns the path to the persistent index database.
func IndexDBPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "index.db")
}

// Load loads configuration from the project's config file, falling
// back to defaults.
func Load(projectRoot string) (*Config, []string, error) {
	return LoadFile(ConfigPath(projectRoot))
}

// LoadFile loads configuration from an explicit file path, falling
// back to defaults when the file does not exist.
func LoadFile(configPath string) (*Config, []string, error) {
	cfg := DefaultConfig()
	warnings := []string{}

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		warnings = append(warnings, "No config file found, using defaults")
		return cfg, warnings, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
		warnings = append(warnings, "Using default LLM provider: openai")
	}
	if cfg.LLM.Model == "" || !v.IsSet("llm.model") {
		cfg.LLM.Model = defaultModelFor(cfg.LLM.Provider)
	}
	if cfg.LLM.SearchModel == "" {
		cfg.LLM.SearchModel = "gpt-4o-mini-search-preview"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
		warnings = append(warnings, "Using default embedding provider: openai")
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}

	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "window"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 800
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 100
	}

	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "memory"
	}
	if cfg.Agent.LocalSource == "" {
		cfg.Agent.LocalSource = "kb"
	}
	if cfg.Simulation.Iterations == 0 {
		cfg.Simulation.Iterations = 5
	}
	if cfg.Simulation.InitialCoolingRate == 0 {
		cfg.Simulation.InitialCoolingRate = 15.0
	}

	return cfg, warnings, nil
}

// defaultModelFor returns the default chat model for a provider.
func defaultModelFor(provider string) string {
	if provider == "anthropic" {
		return "claude-3-5-sonnet-20241022"
	}
	return "gpt-4o-mini"
}

// Save saves configuration to file.
func Save(projectRoot string, cfg *Config) error {
	configDir := ConfigDir(projectRoot)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(ConfigPath(projectRoot))
	v.SetConfigType("yaml")

	// Set all values
	v.Set("llm", cfg.LLM)
	v.Set("embedding", cfg.Embedding)
	v.Set("chunking", cfg.Chunking)
	v.Set("search", cfg.Search)
	v.Set("vectorstore", cfg.VectorStore)
	v.Set("agent", cfg.Agent)
	v.Set("docs", cfg.Docs)
	v.Set("limits", cfg.Limits)
	v.Set("simulation", cfg.Simulation)
	v.Set("logging", cfg.Logging)

	return v.WriteConfig()
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	validLLMProviders := map[string]bool{
		"openai": true, "anthropic": true,
	}
	if !validLLMProviders[cfg.LLM.Provider] {
		errs = append(errs, fmt.Errorf("invalid LLM provider: %s", cfg.LLM.Provider))
	}

	validEmbeddingProviders := map[string]bool{
		"openai": true, "ollama": true,
	}
	// Plugin providers carry a "plugin:" prefix and are validated at load time.
	if !validEmbeddingProviders[cfg.Embedding.Provider] && !isPluginProvider(cfg.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("invalid embedding provider: %s", cfg.Embedding.Provider))
	}

	validChunkingStrategies := map[string]bool{
		"window": true,
	}
	if !validChunkingStrategies[cfg.Chunking.Strategy] {
		errs = append(errs, fmt.Errorf("invalid chunking strategy: %s", cfg.Chunking.Strategy))
	}
	if cfg.Chunking.Overlap >= cfg.Chunking.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking overlap %d must be smaller than chunk size %d",
			cfg.Chunking.Overlap, cfg.Chunking.ChunkSize))
	}

	validStores := map[string]bool{
		"memory": true, "sqlitevec": true,
	}
	if !validStores[cfg.VectorStore.Provider] {
		errs = append(errs, fmt.Errorf("invalid vector store: %s", cfg.VectorStore.Provider))
	}
	if cfg.VectorStore.Provider == "sqlitevec" && cfg.VectorStore.Path == "" {
		errs = append(errs, fmt.Errorf("vector store sqlitevec requires a path"))
	}

	validLocalSources := map[string]bool{
		"kb": true, "filestore": true,
	}
	if !validLocalSources[cfg.Agent.LocalSource] {
		errs = append(errs, fmt.Errorf("invalid agent local source: %s (valid: kb, filestore)", cfg.Agent.LocalSource))
	}

	if cfg.Search.TopK < 0 {
		errs = append(errs, fmt.Errorf("search top_k must not be negative"))
	}

	return errs
}

// isPluginProvider reports whether the provider name refers to an
// external embedding plugin.
func isPluginProvider(name string) bool {
	return len(name) > 7 && name[:7] == "plugin:"
}

// Hash returns a hash of configuration that affects indexing.
// Used for detecting when reindexing is needed.
func (c *Config) Hash() string {
	data := fmt.Sprintf("%s:%s:%s:%d:%d",
		c.Embedding.Provider,
		c.Embedding.Model,
		c.Chunking.Strategy,
		c.Chunking.ChunkSize,
		c.Chunking.Overlap,
	)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

// Copy creates a deep copy of the config.
// Used for runtime modifications without affecting the original.
func (c *Config) Copy() *Config {
	copy := *c

	// Deep copy slices
	if c.Docs.Include != nil {
		copy.Docs.Include = make([]string, len(c.Docs.Include))
		for i, v := range c.Docs.Include {
			copy.Docs.Include[i] = v
		}
	}
	if c.Docs.Exclude != nil {
		copy.Docs.Exclude = make([]string, len(c.Docs.Exclude))
		for i, v := range c.Docs.Exclude {
			copy.Docs.Exclude[i] = v
		}
	}

	return &copy
}
