package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gwicho38/polidisc/internal/httpclient"
	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/transform"
)

var (
	senateDatePattern    = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	senatePTRLinkPattern = regexp.MustCompile(`href="(/search/view/[^"]+)"`)
	htmlTagPattern       = regexp.MustCompile(`<[^>]*>`)
)

func init() {
	Register("us_senate", func() Source { return &SenateSource{} })
}

// ErrBlockedSource is returned when an upstream responds in a way that
// indicates a WAF/Akamai challenge rather than the expected API response
// (§4.1 "Blocked"). Callers can tell it apart from an ordinary fetch error
// by comparing against it; the orchestrator reports it as a failed ingest
// like any other fetch error.
var ErrBlockedSource = fmt.Errorf("source: blocked by upstream WAF or challenge page")

// SenateSource scrapes the Senate Electronic Financial Disclosure (EFD)
// search API, which requires a three-step CSRF/session handshake before any
// search request succeeds (§4.1 "US Senate EFD adapter").
type SenateSource struct {
	Base
}

func (s *SenateSource) Name() string { return "us_senate" }

func (s *SenateSource) Configure(cfg Config) {
	base := defaultConfig("us_senate", "federal_us", "https://efdsearch.senate.gov")
	if cfg.BaseURL != "" {
		base.BaseURL = cfg.BaseURL
	}
	if cfg.RequestDelay > 0 {
		base.RequestDelay = cfg.RequestDelay
	}
	base.Enabled = cfg.Enabled
	s.Init(base)
}

func (s *SenateSource) Fetch(ctx context.Context, lookbackDays int) ([]model.RawDisclosure, error) {
	return s.FetchBatch(ctx, 0, 100, lookbackDays)
}

func (s *SenateSource) FetchBatch(ctx context.Context, offset, limit, lookbackDays int) ([]model.RawDisclosure, error) {
	csrfToken, err := s.handshake(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"report_type_id":      {"11"}, // PTR
		"filer_type_id":       {"1"}, // Senator
		"start":               {fmt.Sprintf("%d", offset)},
		"length":              {fmt.Sprintf("%d", limit)},
		"csrfmiddlewaretoken": {csrfToken},
	}
	resp, err := s.Client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    "/search/report/data/",
		Form:   form,
		Headers: map[string]string{
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          s.Config.BaseURL + "/search/home/",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("senate search request: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrBlockedSource
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("senate search returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Result       string  `json:"result"`
		RecordsTotal int     `json:"recordsTotal"`
		Data         [][]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, ErrBlockedSource // JSON decode failure usually means we got an HTML challenge page
	}
	if payload.Result != "ok" {
		return nil, fmt.Errorf("senate search result was %q, expected ok", payload.Result)
	}

	now := time.Now().UTC()
	out := make([]model.RawDisclosure, 0, len(payload.Data))
	for _, row := range payload.Data {
		out = append(out, s.rowToRaw(ctx, row, now))
	}
	return out, nil
}

// rowToRaw maps one search-results row to a RawDisclosure, then follows the
// row's PTR page link and parses it for transaction detail (§4.1 "Each
// returned row yields a PTR page URL that is fetched and parsed for
// transactions"). The search API itself never exposes ticker/asset/amount
// fields — only the PTR page does — so without this follow-on every Senate
// record would fail Clean's required-field check.
func (s *SenateSource) rowToRaw(ctx context.Context, row []any, now time.Time) model.RawDisclosure {
	first := stringAt(row, 0)
	last := stringAt(row, 1)
	rowText := fmt.Sprint(row)

	dateFiled := senateDatePattern.FindString(rowText)
	ptrURL := ""
	if m := senatePTRLinkPattern.FindStringSubmatch(rowText); m != nil {
		ptrURL = strings.TrimRight(s.Config.BaseURL, "/") + m[1]
	}

	rawData := map[string]any{
		"row":             row,
		"politician_name": strings.TrimSpace(first + " " + last),
		"disclosure_date": dateFiled,
		"ptr_url":         ptrURL,
	}
	s.fetchAndParsePTR(ctx, ptrURL, rawData)

	return model.RawDisclosure{
		Source:     "us_senate",
		SourceType: "federal_us",
		ScrapedAt:  now,
		SourceURL:  ptrURL,
		RawData:    rawData,
	}
}

// fetchAndParsePTR downloads the PTR page at ptrURL (a PDF for "paper"
// filings, HTML for electronic ones), archives it via C2, and extracts the
// first transaction it can find into rawData. Any failure — no link found,
// fetch error, unparseable content — leaves rawData without the transaction
// keys, so Clean skips the row rather than fabricating a value.
func (s *SenateSource) fetchAndParsePTR(ctx context.Context, ptrURL string, rawData map[string]any) {
	if ptrURL == "" {
		return
	}
	resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: ptrURL})
	if err != nil || resp.StatusCode != http.StatusOK {
		slog.Debug("senate: PTR page fetch failed", "url", ptrURL, "error", err)
		return
	}

	isPDF := transform.LooksLikePDF(resp.Body)
	if s.Archive != nil {
		if isPDF {
			if stored, err := s.Archive.SavePDF(resp.Body, ptrPath(ptrURL, "pdf"), ptrURL, ""); err != nil {
				slog.Warn("senate: archiving PTR PDF failed", "url", ptrURL, "error", err)
			} else {
				rawData["has_raw_pdf"] = true
				rawData["source_file_id"] = stored.ID
			}
		} else if _, err := s.Archive.SaveAPIResponse(resp.Body, ptrPath(ptrURL, "html"), ptrURL, "senate_ptr"); err != nil {
			slog.Warn("senate: archiving PTR page failed", "url", ptrURL, "error", err)
		}
	}

	var transactions []transform.ExtractedTransaction
	if isPDF {
		transactions, err = (transform.SenatePDFParser{}).Parse(resp.Body)
	} else {
		transactions = transform.ExtractTransactionsFromText(htmlTagPattern.ReplaceAllString(string(resp.Body), " "))
	}
	if err != nil || len(transactions) == 0 {
		return
	}

	tx := transactions[0]
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

func ptrPath(ptrURL, ext string) string {
	return fmt.Sprintf("senate/%s.%s", sanitizePathSegment(ptrURL), ext)
}

func stringAt(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return s
}

// handshake performs the three-step CSRF/session dance and returns the
// fresh csrftoken the search POST must echo back.
func (s *SenateSource) handshake(ctx context.Context) (string, error) {
	searchURL := s.Config.BaseURL + "/search/"
	resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: searchURL})
	if err != nil {
		return "", fmt.Errorf("senate handshake step 1 (GET /search/): %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", ErrBlockedSource
	}
	token := s.Client.Cookie(searchURL, "csrftoken")
	if token == "" {
		return "", ErrBlockedSource
	}

	homeURL := s.Config.BaseURL + "/search/home/"
	resp, err = s.Client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    homeURL,
		Form: url.Values{
			"prohibition_agreement": {"1"},
			"csrfmiddlewaretoken":   {token},
		},
		Headers: map[string]string{"Referer": homeURL},
	})
	if err != nil {
		return "", fmt.Errorf("senate handshake step 2 (POST /search/home/): %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return "", ErrBlockedSource
	}
	if s.Client.Cookie(homeURL, "sessionid") == "" {
		return "", ErrBlockedSource
	}

	// The agreement POST typically rotates the csrftoken; prefer the
	// refreshed value if present.
	if refreshed := s.Client.Cookie(homeURL, "csrftoken"); refreshed != "" {
		token = refreshed
	}
	return token, nil
}
