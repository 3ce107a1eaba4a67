package pipeline

import (
	"context"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/storage"
)

// Store is the narrow persistence interface PublishStage needs;
// storage.Store satisfies it. Keeping this interface local to pipeline (and
// the storage package's return types, not pipeline's own) lets the
// orchestrator swap in a fake store for tests without pipeline depending on
// anything beyond the two methods it actually calls.
type Store interface {
	UpsertPolitician(model.Politician) (model.Politician, bool, error)
	UpsertDisclosure(d model.NormalizedDisclosure, updateExisting bool) (storage.PublishOutcome, error)
}

// PublishStage ensures a politician row exists for each record and then
// inserts, updates, or skips the disclosure row per the uniqueness key
// (politician_id, transaction_date, asset_name, transaction_type,
// disclosure_date) (§4.5).
type PublishStage struct {
	Store Store
	Opts  Options
}

// PublishSummary tallies the publisher's per-outcome counters, the
// CLI-facing shape of one publish run (§4.5).
type PublishSummary struct {
	PoliticiansCreated int
	PoliticiansMatched int
	DisclosuresInserted int
	DisclosuresUpdated  int
	DisclosuresSkipped  int
}

func (PublishStage) Name() string { return "publish" }

// Process publishes every normalized record and returns the published rows
// alongside a PipelineResult whose Metrics reflect record-level outcomes.
// The richer PublishSummary (which distinguishes insert/update/skip, not
// just success/failure) is returned separately since PipelineResult's
// shape is uniform across all four stages.
func (p PublishStage) Process(ctx context.Context, data []model.NormalizedDisclosure, pctx *model.PipelineContext) (model.PipelineResult[model.NormalizedDisclosure], PublishSummary) {
	metrics := model.PipelineMetrics{RecordsInput: len(data)}
	started := time.Now()
	summary := PublishSummary{}

	var out []model.NormalizedDisclosure
	for _, d := range data {
		if err := checkCancelled(ctx); err != nil {
			metrics.Errors = append(metrics.Errors, err.Error())
			metrics.DurationSeconds = time.Since(started).Seconds()
			return model.PipelineResult[model.NormalizedDisclosure]{Status: model.StatusFailed, StageName: p.Name(), Metrics: metrics, CollectedErrors: []error{err}}, summary
		}

		published, outcome, politicianCreated, err := p.publishOne(d)
		if err != nil {
			metrics.RecordsFailed++
			metrics.Errors = append(metrics.Errors, err.Error())
			continue
		}

		if politicianCreated {
			summary.PoliticiansCreated++
		} else {
			summary.PoliticiansMatched++
		}

		switch outcome {
		case storage.PublishInserted:
			summary.DisclosuresInserted++
		case storage.PublishUpdated:
			summary.DisclosuresUpdated++
		case storage.PublishSkipped:
			summary.DisclosuresSkipped++
			metrics.RecordsSkipped++
		}
		out = append(out, published)
	}

	metrics.RecordsOutput = len(out)
	metrics.DurationSeconds = time.Since(started).Seconds()
	return model.PipelineResult[model.NormalizedDisclosure]{
		Status:    statusFor(len(out), metrics.RecordsFailed),
		StageName: p.Name(),
		Data:      out,
		Metrics:   metrics,
	}, summary
}

// publishOne resolves the politician row for d (creating it if the
// normalizer couldn't match one) and then upserts the disclosure. The
// returned bool reports whether this call created a new politician row, so
// Process can tally PoliticiansCreated vs. PoliticiansMatched (§4.5 step 1).
func (p PublishStage) publishOne(d model.NormalizedDisclosure) (model.NormalizedDisclosure, storage.PublishOutcome, bool, error) {
	created := false
	if d.PoliticianID == "" {
		politician, wasCreated, err := p.Store.UpsertPolitician(model.Politician{
			FirstName: d.PoliticianFirst,
			LastName:  d.PoliticianLast,
			FullName:  d.PoliticianFullName,
			Role:      d.PoliticianRole,
			Chamber:   chamberFor(d.Source),
			Party:     d.PoliticianParty,
			StateOrCountry: d.PoliticianState,
		})
		if err != nil {
			return d, "", false, err
		}
		d.PoliticianID = politician.ID
		created = wasCreated
	}

	outcome, err := p.Store.UpsertDisclosure(d, p.Opts.UpdateExisting)
	return d, outcome, created, err
}

func chamberFor(source string) string {
	switch source {
	case "us_house":
		return "house"
	case "us_senate":
		return "senate"
	default:
		return source
	}
}
