// Package pipeline implements the linear extraction pipeline: structured
// extraction from task descriptions, LLM-driven processing tasks, and a
// human-readable run summary.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// extractionSystemPrompt instructs the model to emit schema-shaped JSON
// with nulls for values that cannot be inferred.
const extractionSystemPrompt = "Extract structured data from the task description that follows. " +
	"Return ONLY valid JSON. Do not include explanations. Do not summarize. " +
	"Do not restate the task. Do not include markdown. " +
	"If a value is missing and cannot be reasonably inferred, return null."

// Extractor turns raw task descriptions into structured records.
type Extractor struct {
	llm provider.StructuredExtractor
}

// NewExtractor creates an extractor backed by a structured-output provider.
func NewExtractor(llm provider.StructuredExtractor) *Extractor {
	return &Extractor{llm: llm}
}

// Extract parses a task description into a structured record. The raw
// model output is validated against the extraction schema before it is
// returned.
func (e *Extractor) Extract(ctx context.Context, text string) (*types.Extraction, error) {
	schema := provider.ExtractionSchema{
		Name:        types.ExtractionToolName,
		Description: "Record the extracted material and simulation parameters from the task description.",
		Schema:      json.RawMessage(types.ExtractionJSONSchema),
	}

	raw, err := e.llm.ExtractStructured(ctx, schema, []types.Message{
		{Role: types.RoleSystem, Content: extractionSystemPrompt},
		{Role: types.RoleUser, Content: text},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	extraction, err := types.ParseExtraction(raw)
	if err != nil {
		return nil, fmt.Errorf("extraction output invalid: %w", err)
	}
	return extraction, nil
}
