package pipeline

import (
	"context"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/source"
)

// BatchSize is the page size IngestStage requests per call to FetchBatch
// when Batched is set, matching the original's documented default.
const BatchSize = 100

// DelayBetweenBatches paces successive FetchBatch calls against a single
// paginated source, independent of the adapter's own per-request rate
// limiter.
const DelayBetweenBatches = 500 * time.Millisecond

// IngestStage wraps a source.Source's raw output into RawDisclosure rows.
// It is thin by design (§4.3.1): retry and per-request pacing live in the
// adapter's httpclient.Client; the only pacing here is DelayBetweenBatches
// between FetchBatch pages.
type IngestStage struct {
	Source       source.Source
	Storage      source.ArchiveStore // attached to Source if non-nil (§4.3.1)
	LookbackDays int
	Batched      bool // true selects the FetchBatch pagination loop
}

func (s *IngestStage) Name() string { return "ingest" }

// Process fetches raw records from the configured source, either via a
// single Fetch call or by paging with FetchBatch until a page comes back
// empty.
func (s *IngestStage) Process(ctx context.Context, _ []struct{}, pctx *model.PipelineContext) model.PipelineResult[model.RawDisclosure] {
	started := time.Now()
	metrics := model.PipelineMetrics{}

	if s.Storage != nil {
		if attacher, ok := s.Source.(source.StorageAttacher); ok {
			attacher.AttachStorage(s.Storage)
		}
	}

	var records []model.RawDisclosure
	var err error
	if s.Batched {
		records, err = s.fetchAllBatches(ctx)
	} else {
		records, err = s.Source.Fetch(ctx, s.LookbackDays)
	}

	metrics.DurationSeconds = time.Since(started).Seconds()
	if err != nil {
		metrics.Errors = append(metrics.Errors, err.Error())
		return model.PipelineResult[model.RawDisclosure]{
			Status:          model.StatusFailed,
			StageName:       s.Name(),
			Metrics:         metrics,
			CollectedErrors: []error{err},
		}
	}

	metrics.RecordsInput = len(records)
	metrics.RecordsOutput = len(records)
	return model.PipelineResult[model.RawDisclosure]{
		Status:    statusFor(len(records), 0),
		StageName: s.Name(),
		Data:      records,
		Metrics:   metrics,
	}
}

func (s *IngestStage) fetchAllBatches(ctx context.Context) ([]model.RawDisclosure, error) {
	var all []model.RawDisclosure
	offset := 0
	for {
		if err := checkCancelled(ctx); err != nil {
			return all, err
		}
		page, err := s.Source.FetchBatch(ctx, offset, BatchSize, s.LookbackDays)
		if err != nil {
			return all, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		offset += BatchSize

		select {
		case <-ctx.Done():
			return all, ctx.Err()
		case <-time.After(DelayBetweenBatches):
		}
	}
	return all, nil
}
