package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/transform"
)

type fakePoliticianStore struct {
	politicians []model.Politician
}

func (f *fakePoliticianStore) AllPoliticians() ([]model.Politician, error) {
	return f.politicians, nil
}

func TestNormalizeStageRebrandAndAmount(t *testing.T) {
	matcher := transform.NewPoliticianMatcher(&fakePoliticianStore{})
	stage := NormalizeStage{Matcher: matcher}

	cleaned := model.CleanedDisclosure{
		PoliticianName:  "Nancy Pelosi",
		TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DisclosureDate:  time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		AssetName:       "Facebook Inc",
		AssetTicker:     "FB",
		TransactionType: "purchase",
		AmountText:      "$1,001 - $15,000",
		Source:          "quiverquant",
	}

	result := stage.Process(context.Background(), []model.CleanedDisclosure{cleaned}, &model.PipelineContext{})
	if result.Status != model.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	got := result.Data[0]
	if got.AssetTicker != "META" {
		t.Fatalf("expected rebrand FB->META, got %s", got.AssetTicker)
	}
	if got.AmountRangeMin == nil || *got.AmountRangeMin != 1001 {
		t.Fatalf("expected amount_range_min=1001, got %v", got.AmountRangeMin)
	}
	if got.AmountRangeMax == nil || *got.AmountRangeMax != 15000 {
		t.Fatalf("expected amount_range_max=15000, got %v", got.AmountRangeMax)
	}
	if got.PoliticianFirst != "Nancy" || got.PoliticianLast != "Pelosi" {
		t.Fatalf("expected name split Nancy/Pelosi, got %s/%s", got.PoliticianFirst, got.PoliticianLast)
	}
}

type fakeCorrectionRecorder struct {
	recorded []model.DataQualityCorrection
}

func (f *fakeCorrectionRecorder) RecordCorrection(c model.DataQualityCorrection) error {
	f.recorded = append(f.recorded, c)
	return nil
}

func TestNormalizeStageRecordsTickerRebrandCorrection(t *testing.T) {
	matcher := transform.NewPoliticianMatcher(&fakePoliticianStore{})
	recorder := &fakeCorrectionRecorder{}
	stage := NormalizeStage{Matcher: matcher, Corrections: recorder}

	cleaned := model.CleanedDisclosure{
		PoliticianName:  "Nancy Pelosi",
		TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DisclosureDate:  time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		AssetName:       "Facebook Inc",
		AssetTicker:     "FB",
		TransactionType: "purchase",
		Source:          "quiverquant",
	}

	stage.Process(context.Background(), []model.CleanedDisclosure{cleaned}, &model.PipelineContext{})

	if len(recorder.recorded) != 1 {
		t.Fatalf("expected 1 correction recorded, got %d", len(recorder.recorded))
	}
	c := recorder.recorded[0]
	if c.OldValue != "FB" || c.NewValue != "META" || c.Confidence != 1.0 {
		t.Fatalf("unexpected correction row: %+v", c)
	}
}

func TestNormalizeStageInfersRoleFromSource(t *testing.T) {
	matcher := transform.NewPoliticianMatcher(&fakePoliticianStore{})
	stage := NormalizeStage{Matcher: matcher}

	cleaned := model.CleanedDisclosure{
		PoliticianName: "Jane Doe", TransactionType: "purchase", AssetName: "Tesla Inc",
		Source: "us_senate",
	}
	result := stage.Process(context.Background(), []model.CleanedDisclosure{cleaned}, &model.PipelineContext{})
	if result.Data[0].PoliticianRole != "US_SENATOR" {
		t.Fatalf("expected inferred role US_SENATOR, got %s", result.Data[0].PoliticianRole)
	}
}
