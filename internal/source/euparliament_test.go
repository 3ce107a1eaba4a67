package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEUParliamentSourceMapsFieldsAndFollowsDPILink(t *testing.T) {
	mepListXMLBody := `<meps><mep><id>123</id><fullName>Jane Doe</fullName><country>France</country><politicalGroup>Renew</politicalGroup></mep></meps>`
	declarationsHTML := `<html><body><a href="/RegData/declarations/DPI/20240115_doe.pdf">DPI</a></body></html>`

	mux := http.NewServeMux()
	mux.HandleFunc("/meps/en/full-list/xml", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("leg") == "outgoing" {
			w.Write([]byte(`<meps></meps>`))
			return
		}
		w.Write([]byte(mepListXMLBody))
	})
	mux.HandleFunc("/meps/en/123/Jane+Doe/declarations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(declarationsHTML))
	})
	mux.HandleFunc("/RegData/declarations/DPI/20240115_doe.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := &EUParliamentSource{}
	s.Configure(Config{BaseURL: server.URL, RequestDelay: time.Millisecond})

	records, err := s.Fetch(context.Background(), 90)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.RawData["politician_name"] != "Jane Doe" {
		t.Fatalf("expected politician_name Jane Doe, got %v", rec.RawData["politician_name"])
	}
	if rec.RawData["disclosure_date"] != "01/15/2024" {
		t.Fatalf("expected disclosure_date 01/15/2024, got %v", rec.RawData["disclosure_date"])
	}
	// The DPI PDF 404s, so no transaction detail should have been fabricated.
	if _, ok := rec.RawData["asset_name"]; ok {
		t.Fatalf("expected no asset_name when the DPI PDF follow-on fails, got %v", rec.RawData["asset_name"])
	}
}

func TestFormatYYYYMMDD(t *testing.T) {
	if got := formatYYYYMMDD("20240115"); got != "01/15/2024" {
		t.Fatalf("expected 01/15/2024, got %q", got)
	}
	if got := formatYYYYMMDD("bad"); got != "bad" {
		t.Fatalf("expected malformed input returned unchanged, got %q", got)
	}
}
