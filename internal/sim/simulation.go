// Package sim implements a toy microstructure evolution model for a
// nickel-based superalloy heat treatment, plus an LLM-driven optimizer
// over its cooling rate.
package sim

import (
	"math"

	"github.com/spetr/matwizard/pkg/types"
)

// MaterialName identifies the simulated alloy.
const MaterialName = "Nickel-based superalloy"

// Baseline state and Hall-Petch constants. Yield strength follows
// sigma_y = sigma_0 + k / sqrt(grain_size_nm).
const (
	DefaultTemperatureK = 1200.0
	InitialGrainSizeNm  = 850.0
	baselinePorosityPct = 1.5

	sigma0MPa       = 200.0
	hallPetchKMPaNm = 5000.0

	// PorosityFailureThresholdPct marks the porosity above which the
	// material counts as failed.
	PorosityFailureThresholdPct = 5.0

	DefaultEvolutionSteps   = 20
	DefaultDurationHours    = 4.0
	referenceCoolingRate    = 15.0
	optimalDurationHours    = 4.0
	minGrainSizeNm          = 50.0
	maxPorosityPct          = 10.0
)

// Params are the inputs to one simulation run. Zero values fall back to
// the schema baselines.
type Params struct {
	CoolingRateKPerMin float64
	DurationHours      float64
	TemperatureK       float64
	InitialGrainSizeNm float64
	Steps              int
}

// Composition returns the schema-shaped composition of the alloy.
func Composition() []types.CompositionEntry {
	return []types.CompositionEntry{
		{Element: "Ni", Percentage: 60},
		{Element: "Cr", Percentage: 20},
		{Element: "Co", Percentage: 10},
		{Element: "Al", Percentage: 10},
	}
}

// MaterialSystem returns the simulated material as a schema-shaped record.
func MaterialSystem() types.MaterialSystem {
	name := MaterialName
	phase := "gamma/gamma-prime"
	grain := InitialGrainSizeNm
	porosity := baselinePorosityPct
	return types.MaterialSystem{
		MaterialName: &name,
		Composition:  Composition(),
		PhaseType:    &phase,
		Microstructure: types.Microstructure{
			GrainSizeNm:      &grain,
			PorosityPercent:  &porosity,
			CrystalStructure: &phase,
		},
	}
}

// Run evolves the microstructure over the configured number of steps.
// Faster cooling refines grains and raises yield strength, but very
// fast cooling or a duration far from optimal drives porosity up; runs
// crossing the failure threshold stop early with Success false.
func Run(p Params) types.SimulationResult {
	if p.DurationHours == 0 {
		p.DurationHours = DefaultDurationHours
	}
	if p.TemperatureK == 0 {
		p.TemperatureK = DefaultTemperatureK
	}
	if p.InitialGrainSizeNm == 0 {
		p.InitialGrainSizeNm = InitialGrainSizeNm
	}
	if p.Steps == 0 {
		p.Steps = DefaultEvolutionSteps
	}

	grainSize := p.InitialGrainSizeNm
	porosity := baselinePorosityPct

	coolingFactor := math.Min(2.0, math.Max(0.2, p.CoolingRateKPerMin/referenceCoolingRate))
	durationDeviation := math.Abs(p.DurationHours - optimalDurationHours)

	for step := 0; step < p.Steps; step++ {
		// Higher cooling rate refines grains.
		refinement := 1.0 + 0.03*float64(step+1)*math.Log1p(coolingFactor)
		grainSize = p.InitialGrainSizeNm / refinement
		grainSize = math.Max(minGrainSizeNm, math.Min(p.InitialGrainSizeNm, grainSize))

		// Very high cooling traps gas and builds thermal stress; a
		// duration mismatch adds on top.
		deltaCooling := 0.08 * math.Log1p(math.Max(0, p.CoolingRateKPerMin-10))
		deltaDuration := 0.02 * durationDeviation
		porosity += (deltaCooling + deltaDuration) / float64(p.Steps)
		porosity = math.Max(0.0, math.Min(maxPorosityPct, porosity))

		if porosity > PorosityFailureThresholdPct {
			break
		}
	}

	return types.SimulationResult{
		CoolingRate:      p.CoolingRateKPerMin,
		GrainSizeNm:      grainSize,
		PorosityPct:      porosity,
		YieldStrengthMPa: sigma0MPa + hallPetchKMPaNm/math.Sqrt(grainSize),
		Success:          porosity <= PorosityFailureThresholdPct,
	}
}
