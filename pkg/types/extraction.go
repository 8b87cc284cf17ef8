package types

import (
	"encoding/json"
	"fmt"
)

// ExtractionToolName is the tool name used for tool-based structured extraction.
const ExtractionToolName = "record_extraction"

// ExtractionSchemaName is the schema name used for json_schema structured output.
const ExtractionSchemaName = "material_simulation_extraction"

// Extraction is the structured record produced from a task description.
// Nullable fields in the wire schema map to pointer fields here.
type Extraction struct {
	MaterialSystem       MaterialSystem       `json:"material_system"`
	ProcessingConditions ProcessingConditions `json:"processing_conditions"`
	SimulationParameters SimulationParameters `json:"simulation_parameters"`
	ComputedProperties   ComputedProperties   `json:"computed_properties"`
	UncertaintyEstimates UncertaintyEstimates `json:"uncertainty_estimates"`
}

// MaterialSystem describes the material under study.
type MaterialSystem struct {
	MaterialName   *string            `json:"material_name"`
	Composition    []CompositionEntry `json:"composition"`
	PhaseType      *string            `json:"phase_type"`
	Microstructure Microstructure     `json:"microstructure"`
}

// CompositionEntry is one element of an alloy composition.
type CompositionEntry struct {
	Element    string  `json:"element"`
	Percentage float64 `json:"percentage"`
}

// Microstructure holds microstructural descriptors.
type Microstructure struct {
	GrainSizeNm      *float64 `json:"grain_size_nm"`
	PorosityPercent  *float64 `json:"porosity_percent"`
	CrystalStructure *string  `json:"crystal_structure"`
}

// ProcessingConditions describes how the material was processed.
type ProcessingConditions struct {
	SynthesisMethod *string       `json:"synthesis_method"`
	HeatTreatment   HeatTreatment `json:"heat_treatment"`
	PressureGPa     *float64      `json:"pressure_GPa"`
}

// HeatTreatment holds heat treatment parameters.
type HeatTreatment struct {
	TemperatureK       *float64 `json:"temperature_K"`
	DurationHours      *float64 `json:"duration_hours"`
	CoolingRateKPerMin *float64 `json:"cooling_rate_K_per_min"`
}

// SimulationParameters describes the requested simulation setup.
type SimulationParameters struct {
	TemperatureRangeK  TemperatureRange `json:"temperature_range_K"`
	StrainRateSInverse *float64         `json:"strain_rate_s_inverse"`
	BoundaryConditions *string          `json:"boundary_conditions"`
	ModelType          *string          `json:"model_type"`
}

// TemperatureRange is a min/max/step sweep definition.
type TemperatureRange struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Step *float64 `json:"step"`
}

// ComputedProperties holds material properties reported by the task.
type ComputedProperties struct {
	ThermalConductivityWPerMK       *float64 `json:"thermal_conductivity_W_per_mK"`
	YieldStrengthMPa                *float64 `json:"yield_strength_MPa"`
	YoungsModulusGPa                *float64 `json:"youngs_modulus_GPa"`
	PoissonsRatio                   *float64 `json:"poissons_ratio"`
	ThermalExpansionCoefficientPerK *float64 `json:"thermal_expansion_coefficient_per_K"`
	SpecificHeatJPerKgK             *float64 `json:"specific_heat_J_per_kgK"`
	ElectricalConductivitySPerM     *float64 `json:"electrical_conductivity_S_per_m"`
	DensityKgPerM3                  *float64 `json:"density_kg_per_m3"`
}

// UncertaintyEstimates holds confidence information.
type UncertaintyEstimates struct {
	PropertyUncertaintyPercent *float64 `json:"property_uncertainty_percent"`
	ModelConfidenceLevel       *float64 `json:"model_confidence_level"`
}

// ParseExtraction unmarshals and validates a raw extraction payload.
// Validation happens once here; downstream code trusts the record.
func ParseExtraction(data []byte) (*Extraction, error) {
	var e Extraction
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &SchemaError{Field: "extraction", Reason: err.Error()}
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks the record against schema constraints.
func (e *Extraction) Validate() error {
	for i, c := range e.MaterialSystem.Composition {
		if c.Element == "" {
			return &SchemaError{
				Field:  fmt.Sprintf("material_system.composition[%d].element", i),
				Reason: "empty element symbol",
			}
		}
		if c.Percentage < 0 || c.Percentage > 100 {
			return &SchemaError{
				Field:  fmt.Sprintf("material_system.composition[%d].percentage", i),
				Reason: fmt.Sprintf("out of range: %v", c.Percentage),
			}
		}
	}
	if p := e.MaterialSystem.Microstructure.PorosityPercent; p != nil && (*p < 0 || *p > 100) {
		return &SchemaError{Field: "material_system.microstructure.porosity_percent", Reason: "out of range"}
	}
	if g := e.MaterialSystem.Microstructure.GrainSizeNm; g != nil && *g <= 0 {
		return &SchemaError{Field: "material_system.microstructure.grain_size_nm", Reason: "must be positive"}
	}
	if t := e.ProcessingConditions.HeatTreatment.TemperatureK; t != nil && *t < 0 {
		return &SchemaError{Field: "processing_conditions.heat_treatment.temperature_K", Reason: "negative temperature"}
	}
	r := e.SimulationParameters.TemperatureRangeK
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return &SchemaError{Field: "simulation_parameters.temperature_range_K", Reason: "min exceeds max"}
	}
	if c := e.UncertaintyEstimates.ModelConfidenceLevel; c != nil && (*c < 0 || *c > 1) {
		return &SchemaError{Field: "uncertainty_estimates.model_confidence_level", Reason: "must be in [0, 1]"}
	}
	return nil
}

// ExtractionJSONSchema is the JSON schema enforced on providers during
// structured extraction. All fields are required; missing values are null.
const ExtractionJSONSchema = `{
  "type": "object",
  "properties": {
    "material_system": {
      "type": "object",
      "properties": {
        "material_name": {"type": ["string", "null"]},
        "composition": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "element": {"type": "string"},
              "percentage": {"type": "number"}
            },
            "required": ["element", "percentage"],
            "additionalProperties": false
          }
        },
        "phase_type": {"type": ["string", "null"]},
        "microstructure": {
          "type": "object",
          "properties": {
            "grain_size_nm": {"type": ["number", "null"]},
            "porosity_percent": {"type": ["number", "null"]},
            "crystal_structure": {"type": ["string", "null"]}
          },
          "required": ["grain_size_nm", "porosity_percent", "crystal_structure"],
          "additionalProperties": false
        }
      },
      "required": ["material_name", "composition", "phase_type", "microstructure"],
      "additionalProperties": false
    },
    "processing_conditions": {
      "type": "object",
      "properties": {
        "synthesis_method": {"type": ["string", "null"]},
        "heat_treatment": {
          "type": "object",
          "properties": {
            "temperature_K": {"type": ["number", "null"]},
            "duration_hours": {"type": ["number", "null"]},
            "cooling_rate_K_per_min": {"type": ["number", "null"]}
          },
          "required": ["temperature_K", "duration_hours", "cooling_rate_K_per_min"],
          "additionalProperties": false
        },
        "pressure_GPa": {"type": ["number", "null"]}
      },
      "required": ["synthesis_method", "heat_treatment", "pressure_GPa"],
      "additionalProperties": false
    },
    "simulation_parameters": {
      "type": "object",
      "properties": {
        "temperature_range_K": {
          "type": "object",
          "properties": {
            "min": {"type": ["number", "null"]},
            "max": {"type": ["number", "null"]},
            "step": {"type": ["number", "null"]}
          },
          "required": ["min", "max", "step"],
          "additionalProperties": false
        },
        "strain_rate_s_inverse": {"type": ["number", "null"]},
        "boundary_conditions": {"type": ["string", "null"]},
        "model_type": {"type": ["string", "null"]}
      },
      "required": ["temperature_range_K", "strain_rate_s_inverse", "boundary_conditions", "model_type"],
      "additionalProperties": false
    },
    "computed_properties": {
      "type": "object",
      "properties": {
        "thermal_conductivity_W_per_mK": {"type": ["number", "null"]},
        "yield_strength_MPa": {"type": ["number", "null"]},
        "youngs_modulus_GPa": {"type": ["number", "null"]},
        "poissons_ratio": {"type": ["number", "null"]},
        "thermal_expansion_coefficient_per_K": {"type": ["number", "null"]},
        "specific_heat_J_per_kgK": {"type": ["number", "null"]},
        "electrical_conductivity_S_per_m": {"type": ["number", "null"]},
        "density_kg_per_m3": {"type": ["number", "null"]}
      },
      "required": [
        "thermal_conductivity_W_per_mK",
        "yield_strength_MPa",
        "youngs_modulus_GPa",
        "poissons_ratio",
        "thermal_expansion_coefficient_per_K",
        "specific_heat_J_per_kgK",
        "electrical_conductivity_S_per_m",
        "density_kg_per_m3"
      ],
      "additionalProperties": false
    },
    "uncertainty_estimates": {
      "type": "object",
      "properties": {
        "property_uncertainty_percent": {"type": ["number", "null"]},
        "model_confidence_level": {"type": ["number", "null"]}
      },
      "required": ["property_uncertainty_percent", "model_confidence_level"],
      "additionalProperties": false
    }
  },
  "required": [
    "material_system",
    "processing_conditions",
    "simulation_parameters",
    "computed_properties",
    "uncertainty_estimates"
  ],
  "additionalProperties": false
}`
