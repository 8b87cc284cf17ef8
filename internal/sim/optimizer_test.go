package sim

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spetr/matwizard/pkg/types"
)

// sequenceCompleter replays canned replies in order, recording every
// user prompt it saw.
type sequenceCompleter struct {
	replies []string
	err     error
	prompts []string
}

func (c *sequenceCompleter) Name() string { return "sequence" }

func (c *sequenceCompleter) Complete(ctx context.Context, messages []types.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.prompts = append(c.prompts, messages[len(messages)-1].Content)
	if len(c.prompts) > len(c.replies) {
		return "", errors.New("ran out of scripted replies")
	}
	return c.replies[len(c.prompts)-1], nil
}

func (c *sequenceCompleter) Available() bool { return true }
func (c *sequenceCompleter) Close() error    { return nil }

func TestParseCoolingRate(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
		ok    bool
	}{
		{"15", 15, true},
		{"12.5", 12.5, true},
		{"  20.0 K/min", 20, true},
		{"Try 17.5 next.", 17.5, true},
		{"1e1", 10, true},
		{"-5", -5, true},
		{"no number here", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			got, ok := parseCoolingRate(tt.reply)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseCoolingRate(%q) = %v, %v; want %v, %v", tt.reply, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestClampRate(t *testing.T) {
	if got := clampRate(-5); got != 0.1 {
		t.Errorf("clampRate(-5) = %v, want 0.1", got)
	}
	if got := clampRate(500); got != 100 {
		t.Errorf("clampRate(500) = %v, want 100", got)
	}
	if got := clampRate(15); got != 15 {
		t.Errorf("clampRate(15) = %v", got)
	}
}

func TestOptimizeRunsIterationsAndFollowsSuggestions(t *testing.T) {
	llm := &sequenceCompleter{replies: []string{"20", "25", "30"}}
	opt := NewOptimizer(OptimizerConfig{Completer: llm, Iterations: 3})

	history, err := opt.Optimize(context.Background(), 0)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("expected 3 iterations, got %d", len(history))
	}
	wantRates := []float64{DefaultCoolingRate, 20, 25}
	for i, want := range wantRates {
		if history[i].CoolingRate != want {
			t.Errorf("iteration %d cooling rate = %v, want %v", i, history[i].CoolingRate, want)
		}
	}

	// One suggestion per iteration.
	if len(llm.prompts) != 3 {
		t.Errorf("expected 3 model calls, got %d", len(llm.prompts))
	}
	if !strings.HasPrefix(llm.prompts[0], "No previous attempts.") {
		t.Errorf("first prompt missing empty-history text: %q", llm.prompts[0])
	}
	if !strings.Contains(llm.prompts[1], "cooling_rate_K_per_min=15") {
		t.Errorf("history line missing: %q", llm.prompts[1])
	}
}

func TestOptimizeFallbackOnNonNumericReplies(t *testing.T) {
	// Both parse attempts fail, then the loop continues on the fallback.
	llm := &sequenceCompleter{replies: []string{"I suggest cooling slowly", "still no number", "18"}}
	opt := NewOptimizer(OptimizerConfig{Completer: llm, Iterations: 2})

	history, err := opt.Optimize(context.Background(), 15)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 iterations, got %d", len(history))
	}
	if history[1].CoolingRate != 12.0 {
		t.Errorf("fallback rate not used: %v", history[1].CoolingRate)
	}
}

func TestOptimizeClampsSuggestions(t *testing.T) {
	llm := &sequenceCompleter{replies: []string{"100000", "15"}}
	opt := NewOptimizer(OptimizerConfig{Completer: llm, Iterations: 2})

	history, err := opt.Optimize(context.Background(), 15)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if history[1].CoolingRate != 100 {
		t.Errorf("suggestion not clamped: %v", history[1].CoolingRate)
	}
}

func TestOptimizeModelErrorReturnsPartialHistory(t *testing.T) {
	llmErr := errors.New("rate limited")
	opt := NewOptimizer(OptimizerConfig{Completer: &sequenceCompleter{err: llmErr}, Iterations: 3})

	history, err := opt.Optimize(context.Background(), 15)
	if !errors.Is(err, llmErr) {
		t.Fatalf("expected model error, got %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected the first simulation result, got %d entries", len(history))
	}
}

func TestOptimizeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opt := NewOptimizer(OptimizerConfig{Completer: &sequenceCompleter{replies: []string{"15"}}, Iterations: 3})
	_, err := opt.Optimize(ctx, 15)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFormatHistory(t *testing.T) {
	history := []types.SimulationResult{
		{CoolingRate: 15, YieldStrengthMPa: 412.34567, Success: true},
		{CoolingRate: 80, YieldStrengthMPa: 455.1, Success: false},
	}

	got := formatHistory(history)
	if !strings.Contains(got, "cooling_rate_K_per_min=15, yield_strength_MPa=412.35, success=true") {
		t.Errorf("first line malformed:\n%s", got)
	}
	if !strings.Contains(got, "cooling_rate_K_per_min=80, yield_strength_MPa=455.10, success=false") {
		t.Errorf("second line malformed:\n%s", got)
	}
	if !strings.HasSuffix(got, "(reply with one number only):") {
		t.Errorf("closing instruction missing:\n%s", got)
	}
}
