package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestQuiverQuantSourceMapsAssetNameFromTicker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/beta/live/congresstrading", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"Representative":"Jane Doe","Ticker":"AAPL","Transaction":"Purchase","TransactionDate":"01/10/2024","ReportDate":"01/15/2024","Amount":"$1,001 - $15,000","House":"House","Party":"D","BioGuideID":"D000001"}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := &QuiverQuantSource{}
	s.Configure(Config{BaseURL: server.URL, RequestDelay: time.Millisecond})

	records, err := s.Fetch(context.Background(), 90)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.RawData["asset_name"] != "AAPL" {
		t.Fatalf("expected asset_name to fall back to the ticker, got %v", rec.RawData["asset_name"])
	}
	if rec.RawData["politician_name"] != "Jane Doe" {
		t.Fatalf("expected politician_name Jane Doe, got %v", rec.RawData["politician_name"])
	}
	if rec.RawData["disclosure_date"] != "01/15/2024" {
		t.Fatalf("expected disclosure_date from ReportDate, got %v", rec.RawData["disclosure_date"])
	}
}

func TestQuiverQuantSourceWrappedResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/beta/live/congresstrading", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"trades":[{"Representative":"John Roe","Ticker":"MSFT","Transaction":"Sale","TransactionDate":"02/01/2024","ReportDate":"02/05/2024","BioGuideID":"R000002"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := &QuiverQuantSource{}
	s.Configure(Config{BaseURL: server.URL, RequestDelay: time.Millisecond})

	records, err := s.Fetch(context.Background(), 90)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].RawData["asset_ticker"] != "MSFT" {
		t.Fatalf("expected asset_ticker MSFT, got %v", records[0].RawData["asset_ticker"])
	}
}
