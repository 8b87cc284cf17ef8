package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// Pipeline orchestrates extract, process, and summarize into one run.
type Pipeline struct {
	extractor  *Extractor
	processor  *Processor
	summarizer *Summarizer
}

// Config contains pipeline configuration. Extract needs structured
// output support, so the provider must implement StructuredExtractor.
type Config struct {
	Extractor provider.StructuredExtractor
	Completer provider.Completer
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		extractor:  NewExtractor(cfg.Extractor),
		processor:  NewProcessor(cfg.Completer),
		summarizer: NewSummarizer(cfg.Completer),
	}
}

// Run executes the full pipeline over a task description. tasks selects
// which processing tasks to run; nil runs all of them in canonical
// order. Unknown task names fail before any model call is made.
func (p *Pipeline) Run(ctx context.Context, input string, tasks []string) (*types.PipelineResult, error) {
	if tasks == nil {
		tasks = Tasks()
	}
	for _, task := range tasks {
		if !IsTask(task) {
			return nil, fmt.Errorf("task %q: %w", task, types.ErrUnknownTask)
		}
	}

	start := time.Now()

	extraction, err := p.extractor.Extract(ctx, input)
	if err != nil {
		return nil, err
	}
	slog.Debug("extraction complete", "duration", time.Since(start).Round(time.Millisecond))

	processing := make(map[string]types.TaskResult, len(tasks))
	for _, task := range tasks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := p.processor.Process(ctx, extraction, task)
		if err != nil {
			return nil, err
		}
		processing[task] = *result
		slog.Debug("processing task complete", "task", task)
	}

	summary, err := p.summarizer.Summarize(ctx, input, extraction, processing)
	if err != nil {
		return nil, err
	}

	slog.Info("pipeline complete",
		"tasks", len(tasks),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return &types.PipelineResult{
		Summary:    summary,
		Extraction: extraction,
		Processing: processing,
	}, nil
}
