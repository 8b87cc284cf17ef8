package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// Processing task names.
const (
	TaskSchemaValidation       = "schema_validation"
	TaskConstraintVerification = "constraint_verification"
	TaskFeatureExtraction      = "feature_extraction"
	TaskNormalization          = "normalization"
	TaskRiskRanking            = "risk_ranking"
)

// taskPrompts maps each task to its system prompt.
var taskPrompts = map[string]string{
	TaskSchemaValidation: "You validate material/simulation extraction data. Check: composition percentages " +
		"sum to ~100% (or note if missing); missing required fields; unit plausibility; contradictory fields " +
		"(e.g. porosity 0% vs 'highly porous'). Reply with ONLY a JSON object: " +
		`{"valid": boolean, "issues": [list of strings]}. No markdown, no explanation.`,

	TaskConstraintVerification: "You verify physics/constraint plausibility of material/simulation data. " +
		"Consider: temperature vs melting point; realistic strain rate; model vs scale (e.g. DFT for " +
		"macroscopic grain is inconsistent). Reply with ONLY a JSON object: " +
		`{"plausible": boolean, "warnings": [list of strings]}. No markdown, no explanation.`,

	TaskFeatureExtraction: "You classify the material/simulation from the extraction data. Infer: alloy_class " +
		"(e.g. superalloy, composite, cathode); functional_category (e.g. structural, energy material); " +
		"dominant_mechanism (e.g. dislocation, diffusion, phonon scattering); dimensionality (e.g. bulk, layered). " +
		"Reply with ONLY a JSON object with keys: alloy_class, functional_category, dominant_mechanism, " +
		"dimensionality (strings). No markdown, no explanation.",

	TaskNormalization: "You normalize/reformat the extraction data: convert composition percentages to " +
		"fractions (e.g. 60 -> 0.6); expand temperature_range_K {min, max, step} into an array of temperatures; " +
		"keep units standardized. Return a single JSON object with the same top-level keys (material_system, " +
		"processing_conditions, simulation_parameters, computed_properties, uncertainty_estimates) and " +
		"normalized values. For composition use a list of {element, fraction}. For temperature range include " +
		"a temperatures_K array. No markdown, no explanation.",

	TaskRiskRanking: "You rank by sensitivity/impact. From the extraction data: (1) Rank which computed " +
		"properties are most sensitive to compositional variation (list property names from most to least " +
		"sensitive). (2) Rank processing parameters by expected impact (list parameter names). Reply with " +
		`ONLY a JSON object: {"property_ranking": [strings], "processing_ranking": [strings]}. ` +
		"No markdown, no explanation.",
}

// taskOrder is the canonical run order for a full pipeline.
var taskOrder = []string{
	TaskSchemaValidation,
	TaskConstraintVerification,
	TaskFeatureExtraction,
	TaskNormalization,
	TaskRiskRanking,
}

// Tasks returns the processing task names in canonical order.
func Tasks() []string {
	return append([]string(nil), taskOrder...)
}

// IsTask reports whether name is a known processing task.
func IsTask(name string) bool {
	_, ok := taskPrompts[name]
	return ok
}

// Processor runs analysis tasks over an extraction record.
type Processor struct {
	llm provider.Completer
}

// NewProcessor creates a processor.
func NewProcessor(llm provider.Completer) *Processor {
	return &Processor{llm: llm}
}

// Process runs one task over the extraction and parses the JSON reply.
func (p *Processor) Process(ctx context.Context, extraction *types.Extraction, task string) (*types.TaskResult, error) {
	prompt, ok := taskPrompts[task]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", task, types.ErrUnknownTask)
	}

	payload, err := json.MarshalIndent(extraction, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling extraction failed: %w", err)
	}

	reply, err := p.llm.Complete(ctx, []types.Message{
		{Role: types.RoleSystem, Content: prompt},
		{Role: types.RoleUser, Content: string(payload)},
	})
	if err != nil {
		return nil, fmt.Errorf("task %s failed: %w", task, err)
	}

	output, err := parseJSONReply(reply)
	if err != nil {
		return nil, fmt.Errorf("task %s returned unparsable output: %w", task, err)
	}

	return &types.TaskResult{
		Task:   task,
		Output: output,
		Raw:    reply,
	}, nil
}

// fenceRe matches a markdown code fence around a JSON body.
var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// parseJSONReply parses a model reply as a JSON object, tolerating a
// markdown code fence around the body.
func parseJSONReply(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrParseError, err)
	}
	return out, nil
}
