package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/storage"
)

type fakePublishStore struct {
	politicians map[string]model.Politician
	disclosures map[string]storage.PublishOutcome
	upsertCalls int
}

func newFakePublishStore() *fakePublishStore {
	return &fakePublishStore{politicians: map[string]model.Politician{}, disclosures: map[string]storage.PublishOutcome{}}
}

func (f *fakePublishStore) UpsertPolitician(p model.Politician) (model.Politician, bool, error) {
	f.upsertCalls++
	key := p.LastName + "_" + p.FirstName
	if existing, ok := f.politicians[key]; ok {
		return existing, false, nil
	}
	p.ID = key
	f.politicians[key] = p
	return p, true, nil
}

func (f *fakePublishStore) UpsertDisclosure(d model.NormalizedDisclosure, updateExisting bool) (storage.PublishOutcome, error) {
	key := d.PoliticianID + "|" + d.TransactionDate.Format("2006-01-02") + "|" + d.AssetName
	if _, ok := f.disclosures[key]; ok {
		if !updateExisting {
			f.disclosures[key] = storage.PublishSkipped
			return storage.PublishSkipped, nil
		}
		f.disclosures[key] = storage.PublishUpdated
		return storage.PublishUpdated, nil
	}
	f.disclosures[key] = storage.PublishInserted
	return storage.PublishInserted, nil
}

func normalized(name, last, first, asset string, date time.Time) model.NormalizedDisclosure {
	return model.NormalizedDisclosure{
		PoliticianFullName: name, PoliticianLast: last, PoliticianFirst: first,
		AssetName: asset, TransactionDate: date, DisclosureDate: date,
		TransactionType: "purchase", Source: "us_house",
	}
}

func TestPublishStageInsertsNewDisclosure(t *testing.T) {
	store := newFakePublishStore()
	stage := PublishStage{Store: store}

	result, summary := stage.Process(context.Background(), []model.NormalizedDisclosure{
		normalized("Nancy Pelosi", "Pelosi", "Nancy", "Apple Inc", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
	}, &model.PipelineContext{})

	if result.Status != model.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if summary.DisclosuresInserted != 1 {
		t.Fatalf("expected 1 insert, got %d", summary.DisclosuresInserted)
	}
	if summary.PoliticiansCreated != 1 || summary.PoliticiansMatched != 0 {
		t.Fatalf("expected 1 politician created and 0 matched, got %+v", summary)
	}
	if store.upsertCalls != 1 {
		t.Fatalf("expected politician upsert to be invoked once, got %d calls", store.upsertCalls)
	}
}

func TestPublishStageCountsMatchedPolitician(t *testing.T) {
	store := newFakePublishStore()
	stage := PublishStage{Store: store, Opts: Options{UpdateExisting: true}}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	first := normalized("Nancy Pelosi", "Pelosi", "Nancy", "Apple Inc", date)
	second := normalized("Nancy Pelosi", "Pelosi", "Nancy", "Microsoft Corp", date)

	if _, summary := stage.Process(context.Background(), []model.NormalizedDisclosure{first}, &model.PipelineContext{}); summary.PoliticiansCreated != 1 {
		t.Fatalf("expected first publish to create the politician, got %+v", summary)
	}

	_, summary := stage.Process(context.Background(), []model.NormalizedDisclosure{second}, &model.PipelineContext{})
	if summary.PoliticiansMatched != 1 || summary.PoliticiansCreated != 0 {
		t.Fatalf("expected second publish to match the existing politician, got %+v", summary)
	}
	if store.upsertCalls != 2 {
		t.Fatalf("expected politician upsert to be invoked once per publish, got %d calls", store.upsertCalls)
	}
}

func TestPublishStageSkipsDuplicateWithoutUpdateExisting(t *testing.T) {
	store := newFakePublishStore()
	stage := PublishStage{Store: store, Opts: Options{UpdateExisting: false}}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	record := normalized("Nancy Pelosi", "Pelosi", "Nancy", "Apple Inc", date)

	stage.Process(context.Background(), []model.NormalizedDisclosure{record}, &model.PipelineContext{})
	_, summary := stage.Process(context.Background(), []model.NormalizedDisclosure{record}, &model.PipelineContext{})

	if summary.DisclosuresSkipped != 1 {
		t.Fatalf("expected second identical publish to be skipped, got summary %+v", summary)
	}
}

func TestPublishStageUpdatesDuplicateWhenUpdateExistingSet(t *testing.T) {
	store := newFakePublishStore()
	stage := PublishStage{Store: store, Opts: Options{UpdateExisting: true}}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	record := normalized("Nancy Pelosi", "Pelosi", "Nancy", "Apple Inc", date)

	stage.Process(context.Background(), []model.NormalizedDisclosure{record}, &model.PipelineContext{})
	_, summary := stage.Process(context.Background(), []model.NormalizedDisclosure{record}, &model.PipelineContext{})

	if summary.DisclosuresUpdated != 1 {
		t.Fatalf("expected second identical publish to update, got summary %+v", summary)
	}
}

func TestChamberForMapsKnownSources(t *testing.T) {
	if got := chamberFor("us_house"); got != "house" {
		t.Fatalf("expected house, got %s", got)
	}
	if got := chamberFor("us_senate"); got != "senate" {
		t.Fatalf("expected senate, got %s", got)
	}
	if got := chamberFor("eu_parliament"); got != "eu_parliament" {
		t.Fatalf("expected passthrough for unknown source, got %s", got)
	}
}
