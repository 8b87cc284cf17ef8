package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// pipelineStructure describes the pipeline stages for the summarizer so
// it can explain what each step did.
const pipelineStructure = `
The pipeline has two stages:
1. Extractor: parses raw task descriptions into structured data with keys:
   material_system, processing_conditions, simulation_parameters, computed_properties, uncertainty_estimates.
2. Processor: runs one of these tasks on the extraction:
   schema_validation (valid, issues), constraint_verification (plausible, warnings),
   feature_extraction (alloy_class, functional_category, dominant_mechanism, dimensionality),
   normalization (same keys with normalized values: fractions, temperatures_K array),
   risk_ranking (property_ranking, processing_ranking).
`

const summarySystemPrompt = "You summarize the execution of a material/simulation pipeline. " +
	"You are aware of the pipeline structure:\n" + pipelineStructure +
	"\nWrite a concise, human-readable summary that: (1) states what the original input was; " +
	"(2) lists the actions taken (extraction, then each processing task that was run); " +
	"(3) states what was obtained from each step (key findings, valid/plausible flags, rankings, etc.). " +
	"Use plain language and short paragraphs or bullet points. No raw JSON in the summary."

// Summarizer produces a human-readable account of a pipeline run.
type Summarizer struct {
	llm provider.Completer
}

// NewSummarizer creates a summarizer.
func NewSummarizer(llm provider.Completer) *Summarizer {
	return &Summarizer{llm: llm}
}

// Summarize describes the run: the original input, the steps taken, and
// what each step produced.
func (s *Summarizer) Summarize(ctx context.Context, input string, extraction *types.Extraction, processing map[string]types.TaskResult) (string, error) {
	payload, err := json.MarshalIndent(map[string]any{
		"original_input":     input,
		"extraction":         extraction,
		"processing_results": processingOutputs(processing),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling run record failed: %w", err)
	}

	summary, err := s.llm.Complete(ctx, []types.Message{
		{Role: types.RoleSystem, Content: summarySystemPrompt},
		{Role: types.RoleUser, Content: string(payload)},
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return summary, nil
}

// processingOutputs flattens task results to their parsed outputs.
func processingOutputs(processing map[string]types.TaskResult) map[string]map[string]any {
	out := make(map[string]map[string]any, len(processing))
	for task, result := range processing {
		out[task] = result.Output
	}
	return out
}
