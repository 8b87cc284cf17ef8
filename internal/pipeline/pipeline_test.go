package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// validExtractionJSON is a schema-shaped record for a CMSX-4-like alloy.
const validExtractionJSON = `{
	"material_system": {
		"material_name": "CMSX-4",
		"composition": [
			{"element": "Ni", "percentage": 61.7},
			{"element": "Cr", "percentage": 6.5}
		],
		"phase_type": "gamma/gamma-prime",
		"microstructure": {"grain_size_nm": 450, "porosity_percent": 0.3, "crystal_structure": "FCC"}
	},
	"processing_conditions": {
		"synthesis_method": "directional solidification",
		"heat_treatment": {"temperature_K": 1623, "duration_hours": 6, "cooling_rate_K_per_min": 15},
		"pressure_GPa": null
	},
	"simulation_parameters": {
		"temperature_range_K": {"min": 300, "max": 1200, "step": 100},
		"strain_rate_s_inverse": 0.001,
		"boundary_conditions": "periodic",
		"model_type": "crystal plasticity"
	},
	"computed_properties": {
		"thermal_conductivity_W_per_mK": null,
		"yield_strength_MPa": 890,
		"youngs_modulus_GPa": 120,
		"poissons_ratio": null,
		"thermal_expansion_coefficient_per_K": null,
		"specific_heat_J_per_kgK": null,
		"electrical_conductivity_S_per_m": null,
		"density_kg_per_m3": 8700
	},
	"uncertainty_estimates": {"property_uncertainty_percent": 5, "model_confidence_level": 0.8}
}`

type stubExtractor struct {
	payload   string
	err       error
	gotSchema provider.ExtractionSchema
	gotMsgs   []types.Message
}

func (s *stubExtractor) ExtractStructured(ctx context.Context, schema provider.ExtractionSchema, messages []types.Message) (json.RawMessage, error) {
	s.gotSchema = schema
	s.gotMsgs = messages
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.payload), nil
}

// scriptedCompleter returns canned replies keyed by a substring of the
// system prompt, recording every call.
type scriptedCompleter struct {
	replies map[string]string
	calls   []string
	err     error
}

func (c *scriptedCompleter) Name() string { return "scripted" }

func (c *scriptedCompleter) Complete(ctx context.Context, messages []types.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	system := messages[0].Content
	for key, reply := range c.replies {
		if strings.Contains(system, key) {
			c.calls = append(c.calls, key)
			return reply, nil
		}
	}
	return "", errors.New("no scripted reply for prompt")
}

func (c *scriptedCompleter) Available() bool { return true }
func (c *scriptedCompleter) Close() error    { return nil }

func TestExtractorSendsSchemaAndPrompt(t *testing.T) {
	stub := &stubExtractor{payload: validExtractionJSON}
	extractor := NewExtractor(stub)

	extraction, err := extractor.Extract(context.Background(), "simulate CMSX-4 at 300-1200K")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if extraction.MaterialSystem.MaterialName == nil || *extraction.MaterialSystem.MaterialName != "CMSX-4" {
		t.Errorf("material name not parsed: %+v", extraction.MaterialSystem)
	}
	if stub.gotSchema.Name != types.ExtractionToolName {
		t.Errorf("schema name = %q, want %q", stub.gotSchema.Name, types.ExtractionToolName)
	}
	if len(stub.gotMsgs) != 2 || stub.gotMsgs[0].Role != types.RoleSystem {
		t.Fatalf("unexpected messages: %+v", stub.gotMsgs)
	}
	if !strings.Contains(stub.gotMsgs[0].Content, "Return ONLY valid JSON") {
		t.Errorf("system prompt missing instruction: %q", stub.gotMsgs[0].Content)
	}
	if stub.gotMsgs[1].Content != "simulate CMSX-4 at 300-1200K" {
		t.Errorf("task description not forwarded: %q", stub.gotMsgs[1].Content)
	}
}

func TestExtractorRejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "the model rambled instead"},
		{"schema violation", `{"material_system": {"composition": [{"element": "", "percentage": 50}]}}`},
		{"percentage out of range", `{"material_system": {"composition": [{"element": "Ni", "percentage": 150}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := NewExtractor(&stubExtractor{payload: tt.payload})
			_, err := extractor.Extract(context.Background(), "some task")
			if err == nil {
				t.Fatal("expected error")
			}
			var serr *types.SchemaError
			if !errors.As(err, &serr) {
				t.Errorf("expected SchemaError, got %v", err)
			}
		})
	}
}

func TestProcessorUnknownTask(t *testing.T) {
	processor := NewProcessor(&scriptedCompleter{})

	_, err := processor.Process(context.Background(), &types.Extraction{}, "sentiment_analysis")
	if !errors.Is(err, types.ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestProcessorParsesFencedReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"bare json", `{"valid": true, "issues": []}`},
		{"fenced", "```json\n{\"valid\": true, \"issues\": []}\n```"},
		{"fenced no language", "```\n{\"valid\": true, \"issues\": []}\n```"},
		{"surrounding whitespace", "  \n{\"valid\": true, \"issues\": []}\n  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedCompleter{replies: map[string]string{"You validate": tt.reply}}
			processor := NewProcessor(llm)

			result, err := processor.Process(context.Background(), &types.Extraction{}, TaskSchemaValidation)
			if err != nil {
				t.Fatalf("Process failed: %v", err)
			}
			if result.Task != TaskSchemaValidation {
				t.Errorf("task = %q", result.Task)
			}
			if valid, ok := result.Output["valid"].(bool); !ok || !valid {
				t.Errorf("unexpected output: %+v", result.Output)
			}
		})
	}
}

func TestProcessorUnparsableReply(t *testing.T) {
	llm := &scriptedCompleter{replies: map[string]string{"You validate": "I think it looks fine."}}
	processor := NewProcessor(llm)

	_, err := processor.Process(context.Background(), &types.Extraction{}, TaskSchemaValidation)
	if !errors.Is(err, types.ErrParseError) {
		t.Errorf("expected ErrParseError, got %v", err)
	}
}

func TestTasksCanonicalOrder(t *testing.T) {
	want := []string{
		TaskSchemaValidation,
		TaskConstraintVerification,
		TaskFeatureExtraction,
		TaskNormalization,
		TaskRiskRanking,
	}
	got := Tasks()
	if len(got) != len(want) {
		t.Fatalf("Tasks() returned %d tasks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tasks()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Mutating the returned slice must not affect later calls.
	got[0] = "mutated"
	if Tasks()[0] != TaskSchemaValidation {
		t.Error("Tasks() shares its backing array")
	}
}

func newScriptedPipeline(extractorPayload string) (*Pipeline, *scriptedCompleter) {
	llm := &scriptedCompleter{replies: map[string]string{
		"You validate":       `{"valid": true, "issues": []}`,
		"You verify physics": `{"plausible": true, "warnings": []}`,
		"You classify":       `{"alloy_class": "superalloy", "functional_category": "structural", "dominant_mechanism": "dislocation", "dimensionality": "bulk"}`,
		"You normalize":      `{"material_system": {}, "processing_conditions": {}, "simulation_parameters": {}, "computed_properties": {}, "uncertainty_estimates": {}}`,
		"You rank":           `{"property_ranking": ["yield_strength_MPa"], "processing_ranking": ["cooling_rate_K_per_min"]}`,
		"You summarize":      "Extracted a superalloy record and validated it.",
	}}
	p := New(Config{
		Extractor: &stubExtractor{payload: extractorPayload},
		Completer: llm,
	})
	return p, llm
}

func TestPipelineRunAllTasks(t *testing.T) {
	p, llm := newScriptedPipeline(validExtractionJSON)

	result, err := p.Run(context.Background(), "simulate CMSX-4", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Summary != "Extracted a superalloy record and validated it." {
		t.Errorf("unexpected summary %q", result.Summary)
	}
	if len(result.Processing) != 5 {
		t.Errorf("expected 5 task results, got %d", len(result.Processing))
	}
	if result.Processing[TaskFeatureExtraction].Output["alloy_class"] != "superalloy" {
		t.Errorf("feature extraction result missing: %+v", result.Processing[TaskFeatureExtraction])
	}

	// 5 processing calls plus the summary.
	if len(llm.calls) != 6 {
		t.Errorf("expected 6 completions, got %d: %v", len(llm.calls), llm.calls)
	}
}

func TestPipelineRunSelectedTasks(t *testing.T) {
	p, llm := newScriptedPipeline(validExtractionJSON)

	result, err := p.Run(context.Background(), "input", []string{TaskSchemaValidation})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Processing) != 1 {
		t.Errorf("expected 1 task result, got %d", len(result.Processing))
	}
	if _, ok := result.Processing[TaskSchemaValidation]; !ok {
		t.Errorf("schema_validation result missing")
	}
	if len(llm.calls) != 2 {
		t.Errorf("expected 2 completions, got %d: %v", len(llm.calls), llm.calls)
	}
}

func TestPipelineRejectsUnknownTaskUpfront(t *testing.T) {
	stub := &stubExtractor{payload: validExtractionJSON}
	p := New(Config{Extractor: stub, Completer: &scriptedCompleter{}})

	_, err := p.Run(context.Background(), "input", []string{"sentiment_analysis"})
	if !errors.Is(err, types.ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	if stub.gotMsgs != nil {
		t.Error("extraction ran despite invalid task list")
	}
}

func TestPipelineExtractionErrorStopsRun(t *testing.T) {
	extractErr := errors.New("provider down")
	p := New(Config{
		Extractor: &stubExtractor{err: extractErr},
		Completer: &scriptedCompleter{},
	})

	_, err := p.Run(context.Background(), "input", nil)
	if !errors.Is(err, extractErr) {
		t.Errorf("expected extraction error, got %v", err)
	}
}
