package source

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// buildHouseZIP packages lines (tab-separated, header first) into the
// single-member ZIP the House Clerk publishes for a given year.
func buildHouseZIP(t *testing.T, year int, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(fmt.Sprintf("%dFD.txt", year))
	if err != nil {
		t.Fatalf("creating zip member: %v", err)
	}
	for _, line := range lines {
		if _, err := f.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("writing zip member: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestHouseSourceZIPHappyPath(t *testing.T) {
	const year = 2024
	header := "Prefix\tLast\tFirst\tSuffix\tFilingType\tStateDst\tYear\tFilingDate\tDocID"
	pelosi := "Hon.\tPelosi\tNancy\t\tP\tCA-11\t2024\t01/15/2024\t10020001"
	zipBytes := buildHouseZIP(t, year, header, pelosi)

	mux := http.NewServeMux()
	mux.HandleFunc("/public_disc/financial-pdfs/2024FD.ZIP", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})
	mux.HandleFunc("/public_disc/financial-pdfs/2024/10020001.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := &HouseSource{}
	s.Configure(Config{BaseURL: server.URL, RequestDelay: time.Millisecond})

	records, err := s.fetchYear(context.Background(), year)
	if err != nil {
		t.Fatalf("fetchYear: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.SourceURL != server.URL+"/public_disc/financial-pdfs/2024/10020001.pdf" {
		t.Fatalf("unexpected source url %q", rec.SourceURL)
	}
	if rec.SourceDocumentID != "10020001" {
		t.Fatalf("expected doc id 10020001, got %q", rec.SourceDocumentID)
	}
	if rec.RawData["politician_name"] != "Nancy Pelosi" {
		t.Fatalf("expected politician_name mapped from first+last, got %v", rec.RawData["politician_name"])
	}
	if rec.RawData["disclosure_date"] != "01/15/2024" {
		t.Fatalf("expected disclosure_date mapped from filing_date, got %v", rec.RawData["disclosure_date"])
	}
	// The PDF follow-on 404s, so no transaction detail should have been
	// fabricated onto the row (§4.1's "must not fabricate" output contract).
	if _, ok := rec.RawData["asset_name"]; ok {
		t.Fatalf("expected no asset_name when the PDF follow-on fails, got %v", rec.RawData["asset_name"])
	}
}

func TestHouseSourceSkipsMalformedLines(t *testing.T) {
	header := "Prefix\tLast\tFirst\tSuffix\tFilingType\tStateDst\tYear\tFilingDate\tDocID"
	tooShort := "Hon.\tDoe\tJane"
	zipBytes := buildHouseZIP(t, 2024, header, tooShort)

	mux := http.NewServeMux()
	mux.HandleFunc("/public_disc/financial-pdfs/2024FD.ZIP", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := &HouseSource{}
	s.Configure(Config{BaseURL: server.URL, RequestDelay: time.Millisecond})

	records, err := s.fetchYear(context.Background(), 2024)
	if err != nil {
		t.Fatalf("fetchYear: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected malformed line to be skipped, got %d records", len(records))
	}
}

func TestClassifyFromHouseText(t *testing.T) {
	if got := classifyFromHouseText("lorem ipsum S 01/02/2024 dolor"); got != "sale" {
		t.Fatalf("expected standalone S token to classify as sale, got %q", got)
	}
	if got := classifyFromHouseText("no recognizable tokens here"); got != "" {
		t.Fatalf("expected no classification, got %q", got)
	}
}
