package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrProviderNotAvailable is returned when a provider is not configured
	// for use (e.g., missing API key). Checked on first use of a capability.
	ErrProviderNotAvailable = errors.New("provider not available")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrStoreFailed is returned when a vector store operation fails.
	ErrStoreFailed = errors.New("store operation failed")

	// ErrParseError is returned when a model reply cannot be parsed.
	ErrParseError = errors.New("parse error")

	// ErrUnknownTask is returned for an unrecognized processing task.
	ErrUnknownTask = errors.New("unknown task")

	// ErrRefusal is returned when a model refuses a structured extraction.
	ErrRefusal = errors.New("model refused request")

	// ErrCancelled is returned when an operation is cancelled.
	ErrCancelled = errors.New("operation cancelled")
)

// ProviderError wraps a failure from an LLM or embedding provider call.
type ProviderError struct {
	Provider string // "openai", "anthropic"
	Op       string // "complete", "embed", "web_search", ...
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// SchemaError reports an extraction record that violates the schema.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Field, e.Reason)
}
