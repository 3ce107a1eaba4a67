// Package orchestrator composes the four pipeline stages into one
// end-to-end run per source (C8), short-circuiting on a failed stage and
// aggregating per-stage metrics into a run summary.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/pipeline"
	"github.com/gwicho38/polidisc/internal/source"
	"github.com/gwicho38/polidisc/internal/transform"
	"github.com/gwicho38/polidisc/internal/util"
)

// PoliticianStore is the narrow interface the orchestrator and its
// NormalizeStage collaborator need.
type PoliticianStore = transform.PoliticianStore

// StageSummary reports one stage's outcome for the run summary table.
type StageSummary struct {
	Stage           string
	Status          model.PipelineStatus
	RecordsInput    int
	RecordsOutput   int
	RecordsSkipped  int
	RecordsFailed   int
	DurationSeconds float64
}

// RunSummary is the orchestrator's result for one source (§4.8 step 4).
type RunSummary struct {
	SourceName string
	Stages     []StageSummary
	Publish    pipeline.PublishSummary
	Status     model.PipelineStatus
	StartedAt  time.Time
	CompletedAt time.Time
}

// Orchestrator runs one source through Ingest → Clean → Normalize →
// Publish, injecting the store and matcher every stage needs.
type Orchestrator struct {
	Store          pipeline.Store
	Matcher        *transform.PoliticianMatcher
	Corrections    pipeline.CorrectionRecorder
	Storage        source.ArchiveStore
	LookbackDays   int
	Opts           pipeline.Options
}

// Run executes one pass for sourceName, resolving the adapter via the
// source registry (§4.8 step 1).
func (o *Orchestrator) Run(ctx context.Context, sourceName string, cfg source.Config) (RunSummary, error) {
	adapter, ok := source.Get(sourceName)
	if !ok {
		return RunSummary{}, fmt.Errorf("orchestrator: unknown source %q", sourceName)
	}
	adapter.Configure(cfg)

	pctx := &model.PipelineContext{
		SourceName: sourceName,
		SourceType: cfg.SourceType,
		StartedAt:  time.Now(),
		Metadata:   map[string]any{},
	}
	summary := RunSummary{SourceName: sourceName, StartedAt: pctx.StartedAt}

	ingest := pipeline.IngestStage{Source: adapter, Storage: o.Storage, LookbackDays: o.LookbackDays, Batched: true}
	rawResult := ingest.Process(ctx, nil, pctx)
	summary.Stages = append(summary.Stages, stageSummaryOf(ingest.Name(), rawResult))
	if rawResult.Failed() {
		summary.Status = model.StatusFailed
		summary.CompletedAt = time.Now()
		return summary, nil
	}

	clean := pipeline.CleanStage{Opts: o.Opts}
	cleanResult := clean.Process(ctx, rawResult.Data, pctx)
	summary.Stages = append(summary.Stages, stageSummaryOf(clean.Name(), cleanResult))
	if cleanResult.Failed() {
		summary.Status = model.StatusFailed
		summary.CompletedAt = time.Now()
		return summary, nil
	}

	normalize := pipeline.NormalizeStage{Matcher: o.Matcher, Corrections: o.Corrections}
	normResult := normalize.Process(ctx, cleanResult.Data, pctx)
	summary.Stages = append(summary.Stages, stageSummaryOf(normalize.Name(), normResult))
	if normResult.Failed() {
		summary.Status = model.StatusFailed
		summary.CompletedAt = time.Now()
		return summary, nil
	}

	publish := pipeline.PublishStage{Store: o.Store, Opts: o.Opts}
	pubResult, pubSummary := publish.Process(ctx, normResult.Data, pctx)
	summary.Stages = append(summary.Stages, stageSummaryOf(publish.Name(), pubResult))
	summary.Publish = pubSummary
	summary.Status = pubResult.Status
	summary.CompletedAt = time.Now()
	return summary, nil
}

func stageSummaryOf[T any](name string, r model.PipelineResult[T]) StageSummary {
	return StageSummary{
		Stage:           name,
		Status:          r.Status,
		RecordsInput:    r.Metrics.RecordsInput,
		RecordsOutput:   r.Metrics.RecordsOutput,
		RecordsSkipped:  r.Metrics.RecordsSkipped,
		RecordsFailed:   r.Metrics.RecordsFailed,
		DurationSeconds: r.Metrics.DurationSeconds,
	}
}

// RunMany runs Run concurrently for every name in sourceNames, bounded by
// concurrency goroutines. Unlike a single failing HTTP request, one source
// failing outright (bad credentials, upstream down) should not cancel the
// others mid-flight, so failures are collected rather than propagated as a
// shared cancellation.
func (o *Orchestrator) RunMany(ctx context.Context, sourceNames []string, cfgFor func(string) source.Config, concurrency int) ([]RunSummary, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([]RunSummary, len(sourceNames))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs util.MultiError

	for i, name := range sourceNames {
		i, name := i, name
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			summary, err := o.Run(ctx, name, cfgFor(name))
			if err != nil {
				mu.Lock()
				errs.Add(fmt.Errorf("source %q: %w", name, err))
				mu.Unlock()
				return
			}
			results[i] = summary
			if summary.Status == model.StatusFailed {
				mu.Lock()
				errs.Add(fmt.Errorf("source %q: pipeline failed", name))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return results, errs.Err()
}
