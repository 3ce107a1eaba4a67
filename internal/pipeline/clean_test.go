package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
)

func rawDisclosure(fields map[string]any) model.RawDisclosure {
	return model.RawDisclosure{
		Source:     "us_house",
		SourceType: "federal_us",
		RawData:    fields,
		ScrapedAt:  time.Now(),
	}
}

func TestCleanStageSkipsMissingRequiredField(t *testing.T) {
	stage := CleanStage{}
	result := stage.Process(context.Background(), []model.RawDisclosure{
		rawDisclosure(map[string]any{
			"politician_name":  "Nancy Pelosi",
			"asset_name":       "Apple Inc",
			"transaction_type": "purchase",
			"transaction_date": "2024-01-15",
			// disclosure_date intentionally absent
		}),
	}, &model.PipelineContext{})

	if result.Status != model.StatusFailed {
		t.Fatalf("expected failed status with zero output, got %s", result.Status)
	}
	if len(result.Data) != 0 {
		t.Fatalf("expected no cleaned records, got %d", len(result.Data))
	}
}

func TestCleanStageParsesMultipleDateFormats(t *testing.T) {
	stage := CleanStage{}
	result := stage.Process(context.Background(), []model.RawDisclosure{
		rawDisclosure(map[string]any{
			"politician_name": "Nancy Pelosi", "asset_name": "Apple Inc",
			"transaction_type": "purchase", "transaction_date": "01/15/2024", "disclosure_date": "2024-01-20",
		}),
	}, &model.PipelineContext{})

	if result.Status != model.StatusSuccess {
		t.Fatalf("expected success, got %s: %v", result.Status, result.Metrics.Warnings)
	}
	if got := result.Data[0].TransactionDate.Format("2006-01-02"); got != "2024-01-15" {
		t.Fatalf("expected transaction date 2024-01-15, got %s", got)
	}
}

func TestCleanStageDeduplicates(t *testing.T) {
	stage := CleanStage{Opts: Options{RemoveDuplicates: true}}
	dup := map[string]any{
		"politician_name": "Nancy Pelosi", "asset_name": "Apple Inc",
		"transaction_type": "purchase", "transaction_date": "2024-01-15", "disclosure_date": "2024-01-20",
		"amount": "$1,001 - $15,000",
	}
	result := stage.Process(context.Background(), []model.RawDisclosure{
		rawDisclosure(dup), rawDisclosure(dup),
	}, &model.PipelineContext{})

	if len(result.Data) != 1 {
		t.Fatalf("expected exactly one record after dedup, got %d", len(result.Data))
	}
	if result.Metrics.RecordsSkipped != 1 {
		t.Fatalf("expected one skipped record, got %d", result.Metrics.RecordsSkipped)
	}
}

func TestCleanStageSynonymMapping(t *testing.T) {
	stage := CleanStage{Opts: Options{StrictValidation: true}}
	result := stage.Process(context.Background(), []model.RawDisclosure{
		rawDisclosure(map[string]any{
			"politician_name": "Jane Doe", "asset_name": "Tesla Inc",
			"transaction_type": "sold", "transaction_date": "2024-02-01", "disclosure_date": "2024-02-10",
		}),
	}, &model.PipelineContext{})

	if result.Status != model.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.Data[0].TransactionType != "sale" {
		t.Fatalf("expected synonym 'sold' mapped to 'sale', got %q", result.Data[0].TransactionType)
	}
}
