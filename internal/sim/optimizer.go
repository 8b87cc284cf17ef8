package sim

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

const materialContext = "Material system: Nickel-based superalloy, Ni-60, Cr-20, Co-10, Al-10 (dual-phase). " +
	"Goal: maximize yield_strength_MPa while keeping porosity_percent below 5.0. " +
	"Cooling rate (cooling_rate_K_per_min) affects grain refinement (higher strength at faster cooling) " +
	"but very high cooling can increase porosity and cause failure (success=false)."

const optimizerSystemPrompt = "You are a Materials Informatics Specialist optimizing heat treatment for a nickel-based superalloy.\n\n" +
	materialContext + "\n\n" +
	"You will receive a history of previous attempts: each line gives cooling_rate_K_per_min, " +
	"yield_strength_MPa, and success (true/false). Use this to suggest the next cooling_rate_K_per_min to try.\n\n" +
	"Respond with ONLY a single number: the next cooling_rate_K_per_min in K/min (e.g. 15 or 12.5). " +
	"No units, no explanation, no markdown, no other text. Typical range: about 5 to 50 K/min; " +
	"going too high risks porosity > 5% and failure."

const (
	// DefaultCoolingRate seeds the first iteration.
	DefaultCoolingRate = 15.0

	// fallbackCoolingRate is used when the model keeps replying with
	// non-numeric text.
	fallbackCoolingRate = 12.0

	minCoolingRate = 0.1
	maxCoolingRate = 100.0

	maxParseAttempts = 2

	DefaultIterations = 5
)

// numberRe matches the first number in a model reply, tolerating
// surrounding units or prose.
var numberRe = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)

// Optimizer drives the simulate, log, suggest loop: each iteration runs
// the simulation, appends the outcome to the history, and asks the
// model for the next cooling rate.
type Optimizer struct {
	llm           provider.Completer
	iterations    int
	durationHours float64
	runSim        func(Params) types.SimulationResult
}

// OptimizerConfig contains optimizer configuration.
type OptimizerConfig struct {
	Completer     provider.Completer
	Iterations    int
	DurationHours float64
}

// NewOptimizer creates an optimizer.
func NewOptimizer(cfg OptimizerConfig) *Optimizer {
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	duration := cfg.DurationHours
	if duration == 0 {
		duration = DefaultDurationHours
	}
	return &Optimizer{
		llm:           cfg.Completer,
		iterations:    iterations,
		durationHours: duration,
		runSim:        Run,
	}
}

// Optimize runs the loop starting from initialRate (<= 0 uses the
// default) and returns the per-iteration history. A model error aborts
// the loop and returns the history gathered so far alongside the error.
func (o *Optimizer) Optimize(ctx context.Context, initialRate float64) ([]types.SimulationResult, error) {
	if initialRate <= 0 {
		initialRate = DefaultCoolingRate
	}

	history := make([]types.SimulationResult, 0, o.iterations)
	rate := initialRate

	for i := 0; i < o.iterations; i++ {
		if ctx.Err() != nil {
			return history, ctx.Err()
		}

		result := o.runSim(Params{
			CoolingRateKPerMin: rate,
			DurationHours:      o.durationHours,
		})
		history = append(history, result)

		slog.Debug("simulation iteration",
			"iteration", i+1,
			"cooling_rate", result.CoolingRate,
			"yield_strength", result.YieldStrengthMPa,
			"success", result.Success,
		)

		next, err := o.suggest(ctx, history)
		if err != nil {
			return history, fmt.Errorf("suggestion failed at iteration %d: %w", i+1, err)
		}
		rate = next
	}

	return history, nil
}

// suggest asks the model for the next cooling rate. Non-numeric replies
// are retried once, then the fallback rate is used.
func (o *Optimizer) suggest(ctx context.Context, history []types.SimulationResult) (float64, error) {
	messages := []types.Message{
		{Role: types.RoleSystem, Content: optimizerSystemPrompt},
		{Role: types.RoleUser, Content: formatHistory(history)},
	}

	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		reply, err := o.llm.Complete(ctx, messages)
		if err != nil {
			return 0, err
		}
		if value, ok := parseCoolingRate(reply); ok {
			return clampRate(value), nil
		}
		slog.Warn("non-numeric cooling rate suggestion", "reply", reply, "attempt", attempt+1)
	}

	return fallbackCoolingRate, nil
}

// formatHistory renders the attempt history for the prompt, one line
// per iteration.
func formatHistory(history []types.SimulationResult) string {
	if len(history) == 0 {
		return "No previous attempts. Suggest the first cooling_rate_K_per_min (one number only)."
	}

	var b strings.Builder
	b.WriteString("Previous attempts:\n")
	for _, r := range history {
		fmt.Fprintf(&b, "cooling_rate_K_per_min=%v, yield_strength_MPa=%.2f, success=%v\n",
			r.CoolingRate, r.YieldStrengthMPa, r.Success)
	}
	b.WriteString("\nNext cooling_rate_K_per_min (reply with one number only):")
	return b.String()
}

// parseCoolingRate extracts the first number from a model reply.
func parseCoolingRate(reply string) (float64, bool) {
	match := numberRe.FindString(strings.TrimSpace(reply))
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func clampRate(v float64) float64 {
	if v < minCoolingRate {
		return minCoolingRate
	}
	if v > maxCoolingRate {
		return maxCoolingRate
	}
	return v
}
