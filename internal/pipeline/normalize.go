package pipeline

import (
	"context"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/transform"
)

// CorrectionRecorder is the narrow interface NormalizeStage needs to log a
// data-quality audit row when it rewrites a field on the caller's behalf
// (currently: ticker rebrand canonicalization, §8 "Ticker canonicalization").
// storage.Store satisfies it. Nil is valid and simply skips recording.
type CorrectionRecorder interface {
	RecordCorrection(model.DataQualityCorrection) error
}

// NormalizeStage enriches CleanedDisclosure rows with resolved politician
// identity, a ticker, an inferred asset type, and a parsed amount (§4.3.3).
type NormalizeStage struct {
	Matcher     *transform.PoliticianMatcher
	Ticker      transform.TickerExtractor
	Amount      transform.AmountParser
	Corrections CorrectionRecorder
}

func (NormalizeStage) Name() string { return "normalize" }

func (n NormalizeStage) Process(ctx context.Context, data []model.CleanedDisclosure, pctx *model.PipelineContext) model.PipelineResult[model.NormalizedDisclosure] {
	metrics := model.PipelineMetrics{RecordsInput: len(data)}
	started := time.Now()

	if err := n.Matcher.Load(); err != nil {
		metrics.Errors = append(metrics.Errors, err.Error())
		metrics.DurationSeconds = time.Since(started).Seconds()
		return model.PipelineResult[model.NormalizedDisclosure]{Status: model.StatusFailed, StageName: n.Name(), Metrics: metrics, CollectedErrors: []error{err}}
	}

	var out []model.NormalizedDisclosure
	failed := 0
	for _, cleaned := range data {
		if err := checkCancelled(ctx); err != nil {
			metrics.Errors = append(metrics.Errors, err.Error())
			metrics.DurationSeconds = time.Since(started).Seconds()
			return model.PipelineResult[model.NormalizedDisclosure]{Status: model.StatusFailed, StageName: n.Name(), Metrics: metrics, CollectedErrors: []error{err}}
		}
		out = append(out, n.normalizeOne(cleaned))
	}

	metrics.RecordsOutput = len(out)
	metrics.RecordsFailed = failed
	metrics.DurationSeconds = time.Since(started).Seconds()
	return model.PipelineResult[model.NormalizedDisclosure]{
		Status:    statusFor(len(out), failed),
		StageName: n.Name(),
		Data:      out,
		Metrics:   metrics,
	}
}

// recordTickerCorrection logs an audit row for a ticker rebrand mapping
// (confidence 1.0: the rebrand map is a curated exact-match table, not a
// heuristic). A nil Corrections recorder or a write failure is not fatal to
// the pipeline run; the rewritten ticker still flows through.
func (n NormalizeStage) recordTickerCorrection(politicianID, oldTicker, newTicker string) {
	if n.Corrections == nil {
		return
	}
	_ = n.Corrections.RecordCorrection(model.DataQualityCorrection{
		EntityType:  "disclosure",
		EntityID:    politicianID,
		Field:       "asset_ticker",
		OldValue:    oldTicker,
		NewValue:    newTicker,
		Confidence:  1.0,
		CorrectedBy: "ticker_rebrand_map",
		Status:      "applied",
	})
}

func (n NormalizeStage) normalizeOne(c model.CleanedDisclosure) model.NormalizedDisclosure {
	first, last := transform.SplitPoliticianName(c.PoliticianName)
	id, role, party, state := n.Matcher.Match(first, last, c.Source)

	ticker := c.AssetTicker
	if ticker == "" {
		ticker = n.Ticker.Extract(c.AssetName)
	}
	if canonical := transform.Canonicalize(ticker); canonical != ticker {
		n.recordTickerCorrection(id, ticker, canonical)
		ticker = canonical
	}

	assetType := c.AssetType
	if assetType == "" {
		assetType = transform.InferAssetType(c.AssetName, ticker)
	}

	min, max, exact := n.Amount.Parse(c.AmountText)

	return model.NormalizedDisclosure{
		PoliticianID:       id,
		PoliticianFirst:    first,
		PoliticianLast:     last,
		PoliticianFullName: c.PoliticianName,
		PoliticianRole:     role,
		PoliticianParty:    party,
		PoliticianState:    state,
		TransactionDate:    c.TransactionDate,
		DisclosureDate:     c.DisclosureDate,
		TransactionType:    transform.NormalizeTransactionType(c.TransactionType),
		AssetName:          c.AssetName,
		AssetTicker:        ticker,
		AssetType:          assetType,
		AmountRangeMin:     min,
		AmountRangeMax:     max,
		AmountExact:        exact,
		Source:             c.Source,
		SourceURL:          c.SourceURL,
		SourceDocumentID:   c.SourceDocumentID,
		RawData:            c.RawData,
		HasRawPDF:          rawDataBool(c.RawData, "has_raw_pdf"),
		SourceFileID:       rawDataString(c.RawData, "source_file_id"),
	}
}

// rawDataString and rawDataBool pull an adapter-populated archival marker
// back out of the opaque RawData bag an adapter's C2 archival step stashed
// it in (e.g. source.HouseSource.fetchAndExtractPDF).
func rawDataString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func rawDataBool(data map[string]any, key string) bool {
	v, _ := data[key].(bool)
	return v
}
