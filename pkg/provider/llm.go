package provider

import (
	"context"
	"encoding/json"

	"github.com/spetr/matwizard/pkg/types"
)

// Completer produces a chat completion from a message list.
// Callers depend on the narrowest capability they need; a provider
// implements the optional interfaces below when it supports them.
type Completer interface {
	// Name returns the provider name (e.g., "openai", "anthropic").
	Name() string

	// Complete returns the assistant reply for the given messages.
	Complete(ctx context.Context, messages []types.Message) (string, error)

	// Available reports whether the provider is configured for use.
	Available() bool

	// Close releases any resources.
	Close() error
}

// ExtractionSchema describes a JSON schema for structured extraction.
type ExtractionSchema struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// StructuredExtractor produces schema-constrained JSON output.
type StructuredExtractor interface {
	// ExtractStructured returns raw JSON conforming to the schema.
	ExtractStructured(ctx context.Context, schema ExtractionSchema, messages []types.Message) (json.RawMessage, error)
}

// WebSearcher answers a query using provider-native web search.
type WebSearcher interface {
	WebSearch(ctx context.Context, query string) (string, error)
}

// FileSearcher answers queries against documents uploaded to the provider.
type FileSearcher interface {
	// UploadFiles uploads documents into the provider-side store.
	UploadFiles(ctx context.Context, paths []string) error

	// FileSearch queries the uploaded documents. grounded is true only
	// when the answer carries file citations.
	FileSearch(ctx context.Context, query string) (answer string, grounded bool, err error)
}

// LLMConfig contains configuration for LLM providers.
type LLMConfig struct {
	Provider    string // "openai", "anthropic"
	Model       string // Chat model name
	SearchModel string // Web-search-capable model (OpenAI)
	APIKey      string
	BaseURL     string // Override API endpoint (tests, proxies)
	MaxTokens   int
}
