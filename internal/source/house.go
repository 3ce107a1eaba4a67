package source

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gwicho38/polidisc/internal/httpclient"
	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/transform"
)

func init() {
	Register("us_house", func() Source { return &HouseSource{} })
}

// HouseSource fetches the annual House Clerk ZIP index of financial
// disclosures (§4.1 "US House ZIP-index adapter").
type HouseSource struct {
	Base
}

func (s *HouseSource) Name() string { return "us_house" }

func (s *HouseSource) Configure(cfg Config) {
	base := defaultConfig("us_house", "federal_us", "https://disclosures-clerk.house.gov")
	if cfg.BaseURL != "" {
		base.BaseURL = cfg.BaseURL
	}
	if cfg.RequestDelay > 0 {
		base.RequestDelay = cfg.RequestDelay
	}
	base.Enabled = cfg.Enabled
	s.Init(base)
}

func (s *HouseSource) Fetch(ctx context.Context, lookbackDays int) ([]model.RawDisclosure, error) {
	year := time.Now().Year()
	records, err := s.fetchYear(ctx, year)
	if err != nil {
		return nil, err
	}
	// The lookback window spans a year boundary in the first weeks of
	// January; the prior year's ZIP is still the authoritative source for
	// filings backdated into December.
	if time.Now().YearDay() <= lookbackDays {
		prior, err := s.fetchYear(ctx, year-1)
		if err == nil {
			records = append(records, prior...)
		}
	}
	return records, nil
}

func (s *HouseSource) FetchBatch(ctx context.Context, offset, limit, lookbackDays int) ([]model.RawDisclosure, error) {
	if offset > 0 {
		return nil, nil
	}
	return s.Fetch(ctx, lookbackDays)
}

func (s *HouseSource) fetchYear(ctx context.Context, year int) ([]model.RawDisclosure, error) {
	zipURL := fmt.Sprintf("%s/public_disc/financial-pdfs/%dFD.ZIP", strings.TrimRight(s.Config.BaseURL, "/"), year)
	resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: zipURL})
	if err != nil {
		return nil, fmt.Errorf("fetching house ZIP index: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("house ZIP index returned HTTP %d", resp.StatusCode)
	}

	reader, err := zip.NewReader(bytes.NewReader(resp.Body), int64(len(resp.Body)))
	if err != nil {
		return nil, fmt.Errorf("opening house ZIP: %w", err)
	}

	member := fmt.Sprintf("%dFD.txt", year)
	for _, f := range reader.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", member, err)
		}
		defer rc.Close()
		return s.parseIndex(ctx, rc, year)
	}
	return nil, nil
}

func (s *HouseSource) parseIndex(ctx context.Context, r io.Reader, year int) ([]model.RawDisclosure, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []model.RawDisclosure
	first := true
	now := time.Now().UTC()
	for scanner.Scan() {
		if first {
			first = false
			continue // header row: Prefix Last First Suffix FilingType StateDst Year FilingDate DocID
		}
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 9 {
			continue
		}
		docID := strings.TrimRight(fields[8], "\r\n")
		pdfURL := fmt.Sprintf("%s/public_disc/financial-pdfs/%d/%s.pdf", strings.TrimRight(s.Config.BaseURL, "/"), year, docID)

		rawData := map[string]any{
			"prefix":      fields[0],
			"last":        fields[1],
			"first":       fields[2],
			"suffix":      fields[3],
			"filing_type": fields[4],
			"state_dst":   fields[5],
			"year":        fields[6],
			"filing_date": fields[7],
			"doc_id":      docID,
			"pdf_url":     pdfURL,
			// Mapped unconditionally so Clean's required politician_name and
			// disclosure_date keys are satisfied even when the PDF follow-on
			// below can't recover transaction detail (§4.1).
			"politician_name": strings.TrimSpace(fields[2] + " " + fields[1]),
			"disclosure_date": fields[7],
		}
		s.fetchAndExtractPDF(ctx, docID, pdfURL, rawData)

		out = append(out, model.RawDisclosure{
			Source:           "us_house",
			SourceType:       "federal_us",
			ScrapedAt:        now,
			SourceURL:        pdfURL,
			SourceDocumentID: docID,
			RawData:          rawData,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %dFD.txt: %w", year, err)
	}
	return out, nil
}

// fetchAndExtractPDF downloads the House PDF at pdfURL, archives it via C2
// if storage is attached, and — on a successful extraction — recovers
// {asset_name, asset_ticker, transaction_type, transaction_date, amount}
// into rawData (§4.1 "Optional follow-on"). A download, archive, or
// extraction failure is non-fatal: rawData is left with only the fields
// already mapped, and Clean correctly skips the row for lacking a
// transaction (the spec's documented "skip for that document" behavior).
func (s *HouseSource) fetchAndExtractPDF(ctx context.Context, docID, pdfURL string, rawData map[string]any) {
	resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: pdfURL})
	if err != nil || resp.StatusCode != http.StatusOK {
		slog.Debug("house: PDF follow-on fetch failed", "doc_id", docID, "error", err)
		return
	}

	if s.Archive != nil {
		path := fmt.Sprintf("house/%s.pdf", docID)
		if stored, err := s.Archive.SavePDF(resp.Body, path, pdfURL, ""); err != nil {
			slog.Warn("house: archiving PDF failed", "doc_id", docID, "error", err)
		} else {
			rawData["has_raw_pdf"] = true
			rawData["source_file_id"] = stored.ID
		}
	}

	transactions, err := (transform.SenatePDFParser{}).Parse(resp.Body)
	if err != nil || len(transactions) == 0 {
		return
	}
	tx := transactions[0]
	if tx.TransactionType == "" {
		// The generic word-based scan missed it; House PTR-style forms also
		// mark transactions with a standalone P/S/E token (§4.1).
		tx.TransactionType = classifyFromHouseText(transform.ExtractText(resp.Body))
	}
	if tx.AssetName == "" || tx.TransactionType == "" || tx.TransactionDate == "" {
		return
	}

	rawData["asset_name"] = tx.AssetName
	rawData["transaction_type"] = tx.TransactionType
	rawData["transaction_date"] = tx.TransactionDate
	if tx.Ticker != "" {
		rawData["asset_ticker"] = tx.Ticker
	}
	if tx.AmountText != "" {
		rawData["amount"] = tx.AmountText
	}
}

// houseTransactionTokens recognizes the single-letter and word tokens the
// extracted PDF text uses for transaction type (§4.1).
var houseTransactionTokens = map[string]string{
	"P": "purchase", "S": "sale", "E": "exchange",
	"PURCHASE": "purchase", "BOUGHT": "purchase", "BUY": "purchase",
	"SALE": "sale", "SOLD": "sale", "SELL": "sale",
	"EXCHANGE": "exchange",
}

// classifyHouseTransactionToken maps one extracted token to a canonical
// transaction type, or "" if the token isn't recognized.
func classifyHouseTransactionToken(token string) string {
	return houseTransactionTokens[strings.ToUpper(strings.TrimSpace(token))]
}

// classifyFromHouseText scans whitespace-separated tokens in extracted PDF
// text for the first one classifyHouseTransactionToken recognizes.
func classifyFromHouseText(text string) string {
	for _, tok := range strings.Fields(text) {
		if t := classifyHouseTransactionToken(tok); t != "" {
			return t
		}
	}
	return ""
}
