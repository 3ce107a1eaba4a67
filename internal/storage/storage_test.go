package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveBlobDedup(t *testing.T) {
	s := openTestStore(t)
	data := []byte("%PDF-1.4 fake pdf bytes")

	first, err := s.SavePDF(data, "senate/2024/01/abc_jane_doe_20240115.pdf", "https://example.com/a.pdf", "")
	if err != nil {
		t.Fatalf("SavePDF: %v", err)
	}
	second, err := s.SavePDF(data, "senate/2024/01/different-path.pdf", "https://example.com/b.pdf", "")
	if err != nil {
		t.Fatalf("SavePDF (dup): %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected dedup to reuse id %s, got %s", first.ID, second.ID)
	}
	if second.StoragePath != first.StoragePath {
		t.Fatalf("expected dedup to preserve original path %s, got %s", first.StoragePath, second.StoragePath)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	for _, st := range stats {
		if st.Name == BucketRawPDFsBlob && st.Count != 1 {
			t.Fatalf("expected exactly one blob stored, got %d", st.Count)
		}
	}
}

func TestMarkFileParsedAndGetFilesToParse(t *testing.T) {
	s := openTestStore(t)
	f, err := s.SavePDF([]byte("pdf-bytes"), "house/2024/02/x.pdf", "", "")
	if err != nil {
		t.Fatalf("SavePDF: %v", err)
	}

	pending, err := s.GetFilesToParse(0)
	if err != nil {
		t.Fatalf("GetFilesToParse: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != f.ID {
		t.Fatalf("expected one pending file, got %+v", pending)
	}

	if err := s.MarkFileParsed(f.ID, 3, "disclosure-1"); err != nil {
		t.Fatalf("MarkFileParsed: %v", err)
	}
	pending, err = s.GetFilesToParse(0)
	if err != nil {
		t.Fatalf("GetFilesToParse after parse: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending files after marking parsed, got %d", len(pending))
	}
}

func TestUpsertPoliticianByBioguideID(t *testing.T) {
	s := openTestStore(t)
	p, created, err := s.UpsertPolitician(model.Politician{
		FirstName: "Jane", LastName: "Doe", Chamber: "senate", BioguideID: "D000001",
	})
	if err != nil {
		t.Fatalf("UpsertPolitician: %v", err)
	}
	if !created {
		t.Fatal("expected first upsert to report created=true")
	}

	updated, created, err := s.UpsertPolitician(model.Politician{
		FirstName: "Jane", LastName: "Doe", Chamber: "senate", BioguideID: "D000001", Party: "Independent",
	})
	if err != nil {
		t.Fatalf("UpsertPolitician (update): %v", err)
	}
	if created {
		t.Fatal("expected second upsert to report created=false")
	}
	if updated.ID != p.ID {
		t.Fatalf("expected same politician id across upserts, got %s vs %s", p.ID, updated.ID)
	}
	if updated.Party != "Independent" {
		t.Fatalf("expected party to be updated, got %q", updated.Party)
	}
}

func TestUpsertDisclosureInsertSkipUpdate(t *testing.T) {
	s := openTestStore(t)
	d := model.NormalizedDisclosure{
		PoliticianID:    "p1",
		TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DisclosureDate:  time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		AssetName:       "Apple Inc",
		TransactionType: "purchase",
	}

	outcome, err := s.UpsertDisclosure(d, false)
	if err != nil {
		t.Fatalf("UpsertDisclosure (insert): %v", err)
	}
	if outcome != PublishInserted {
		t.Fatalf("expected inserted, got %s", outcome)
	}

	outcome, err = s.UpsertDisclosure(d, false)
	if err != nil {
		t.Fatalf("UpsertDisclosure (skip): %v", err)
	}
	if outcome != PublishSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}

	count, err := s.CountDisclosures()
	if err != nil {
		t.Fatalf("CountDisclosures: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one disclosure row after skip, got %d", count)
	}

	d.AssetTicker = "AAPL"
	outcome, err = s.UpsertDisclosure(d, true)
	if err != nil {
		t.Fatalf("UpsertDisclosure (update): %v", err)
	}
	if outcome != PublishUpdated {
		t.Fatalf("expected updated, got %s", outcome)
	}
}

func TestJobExecutionHistoryOrder(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.PutJobExecution(model.JobExecution{
			JobID:     "senate-ingest",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Status:    model.JobSuccess,
		})
		if err != nil {
			t.Fatalf("PutJobExecution %d: %v", i, err)
		}
	}

	history, err := s.ListJobExecutions("senate-ingest", 2)
	if err != nil {
		t.Fatalf("ListJobExecutions: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(history))
	}
	if !history[0].StartedAt.After(history[1].StartedAt) {
		t.Fatalf("expected newest-first ordering, got %v then %v", history[0].StartedAt, history[1].StartedAt)
	}
}

func TestCompactAfterGC(t *testing.T) {
	s := openTestStore(t)
	past := time.Now().Add(-1000 * 24 * time.Hour)
	f, err := s.SavePDF(make([]byte, 4096), "house/2020/01/old.pdf", "", "")
	if err != nil {
		t.Fatalf("SavePDF: %v", err)
	}
	if err := s.updateStoredFile(BucketRawPDFsMeta, f.ID, func(sf *model.StoredFile) {
		sf.ExpiresAt = past
	}); err != nil {
		t.Fatalf("backdating expiry: %v", err)
	}

	counts, err := s.GC(time.Now())
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if counts["raw-pdfs"] != 1 {
		t.Fatalf("expected GC to remove 1 raw-pdfs blob, got %d", counts["raw-pdfs"])
	}

	if _, _, err := s.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}
}
