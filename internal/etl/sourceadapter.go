package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/pipeline"
	"github.com/gwicho38/polidisc/internal/source"
	"github.com/gwicho38/polidisc/internal/transform"
)

// sourceAdapter lets any registered internal/source.Source run through the
// Registry's record-by-record lifecycle instead of the batch-oriented
// orchestrator, reusing the pipeline's Clean and Normalize stages one record
// at a time so progress can be polled mid-run via Status.
type sourceAdapter struct {
	src     source.Source
	store   pipeline.Store
	matcher *transform.PoliticianMatcher
	opts    pipeline.Options
}

// FromSource adapts src into a Service. The pipeline.Store and
// transform.PoliticianMatcher it receives are the same ones the orchestrator
// uses, so a politician resolved via one path is visible to the other.
func FromSource(src source.Source, store pipeline.Store, matcher *transform.PoliticianMatcher, opts pipeline.Options) Service {
	return &sourceAdapter{src: src, store: store, matcher: matcher, opts: opts}
}

func (a *sourceAdapter) SourceID() string   { return a.src.Name() }
func (a *sourceAdapter) SourceName() string { return a.src.Name() }

// corrections returns a.store as a pipeline.CorrectionRecorder when it
// implements one (the real storage.Store does); the ETL path's store is
// injected as the narrow pipeline.Store interface, so this is a type
// assertion rather than a field the caller must also wire.
func (a *sourceAdapter) corrections() pipeline.CorrectionRecorder {
	if cr, ok := a.store.(pipeline.CorrectionRecorder); ok {
		return cr
	}
	return nil
}

// rawKey is the map key FetchDisclosures stashes the untouched
// model.RawDisclosure under; ParseDisclosure is the only other place that
// reads it, so the map[string]any shape the Service interface requires
// never needs to survive a JSON round trip.
const rawKey = "_raw"

func (a *sourceAdapter) FetchDisclosures(ctx context.Context, params map[string]any) ([]map[string]any, error) {
	lookbackDays := 90
	if v, ok := params["lookback_days"].(int); ok && v > 0 {
		lookbackDays = v
	}
	if archive, ok := a.store.(source.ArchiveStore); ok {
		if attacher, ok := a.src.(source.StorageAttacher); ok {
			attacher.AttachStorage(archive)
		}
	}
	raw, err := a.src.Fetch(ctx, lookbackDays)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(raw))
	for i, rd := range raw {
		out[i] = map[string]any{rawKey: rd}
	}
	return out, nil
}

func (a *sourceAdapter) ParseDisclosure(item map[string]any) (model.NormalizedDisclosure, bool, error) {
	rd, ok := item[rawKey].(model.RawDisclosure)
	if !ok {
		return model.NormalizedDisclosure{}, false, fmt.Errorf("etl: source adapter received a non-adapter record shape")
	}

	pctx := &model.PipelineContext{
		SourceName: a.src.Name(),
		SourceType: rd.SourceType,
		StartedAt:  time.Now(),
		Metadata:   map[string]any{},
	}

	clean := pipeline.CleanStage{Opts: a.opts}
	cleanResult := clean.Process(context.Background(), []model.RawDisclosure{rd}, pctx)
	if cleanResult.Failed() || len(cleanResult.Data) == 0 {
		return model.NormalizedDisclosure{}, false, nil
	}

	normalize := pipeline.NormalizeStage{Matcher: a.matcher, Corrections: a.corrections()}
	normResult := normalize.Process(context.Background(), cleanResult.Data, pctx)
	if normResult.Failed() || len(normResult.Data) == 0 {
		return model.NormalizedDisclosure{}, false, nil
	}
	return normResult.Data[0], true, nil
}

func (a *sourceAdapter) ValidateDisclosure(d model.NormalizedDisclosure) bool {
	return d.AssetName != "" && d.TransactionType != ""
}

func (a *sourceAdapter) UploadDisclosure(d model.NormalizedDisclosure, updateMode bool) (string, error) {
	outcome, err := a.store.UpsertDisclosure(d, updateMode)
	return string(outcome), err
}
