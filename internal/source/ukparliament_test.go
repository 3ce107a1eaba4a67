package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUKParliamentSourceMapsShareholdingInterests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/Members/Search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"value":{"id":42,"nameDisplayAs":"Jane Doe","nameListAs":"Doe, Jane","latestParty":{"name":"Independent"}}}]}`))
	})
	mux.HandleFunc("/api/Members/42/RegisteredInterests", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[{"interests":[
			{"category":{"name":"Employment","number":"1"},"interestSummary":"Consultancy income","createdWhen":"2024-01-10T00:00:00"},
			{"category":{"name":"Shareholdings","number":"7"},"interestSummary":"Shareholding in Example Corp (more than 15%)","createdWhen":"2024-01-20T00:00:00"}
		]}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := &UKParliamentSource{}
	s.Configure(Config{BaseURL: server.URL, RequestDelay: time.Millisecond})

	records, err := s.Fetch(context.Background(), 90)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// Category 1 (employment income) is not a shareholding and must be
	// filtered out; only category 7 should produce a record.
	if len(records) != 1 {
		t.Fatalf("expected 1 shareholding record, got %d", len(records))
	}
	rec := records[0]
	if rec.RawData["politician_name"] != "Jane Doe" {
		t.Fatalf("expected politician_name Jane Doe, got %v", rec.RawData["politician_name"])
	}
	if rec.RawData["asset_name"] != "Shareholding in Example Corp (more than 15%)" {
		t.Fatalf("expected asset_name mapped from interest summary, got %v", rec.RawData["asset_name"])
	}
	if rec.RawData["transaction_type"] != "shareholding" {
		t.Fatalf("expected transaction_type shareholding, got %v", rec.RawData["transaction_type"])
	}
	if rec.RawData["disclosure_date"] != "2024-01-20T00:00:00" {
		t.Fatalf("expected disclosure_date from registered date, got %v", rec.RawData["disclosure_date"])
	}
}
