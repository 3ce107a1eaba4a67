package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gwicho38/polidisc/internal/httpclient"
	"github.com/gwicho38/polidisc/internal/model"
)

func init() {
	Register("quiverquant", func() Source { return &QuiverQuantSource{} })
}

// QuiverQuantSource is a third-party aggregator with two modes: an
// authenticated JSON API (preferred, used here) and a web-scrape fallback of
// /congresstrading/ the orchestrator can fall back to if APIKey is unset
// (not implemented — §4.1 names it as a fallback path this system does not
// need when API credentials are configured).
type QuiverQuantSource struct {
	Base
	APIKey string
}

func (s *QuiverQuantSource) Name() string { return "quiverquant" }

func (s *QuiverQuantSource) Configure(cfg Config) {
	base := defaultConfig("quiverquant", "third_party", "https://api.quiverquant.com")
	if cfg.BaseURL != "" {
		base.BaseURL = cfg.BaseURL
	}
	if cfg.RequestDelay > 0 {
		base.RequestDelay = cfg.RequestDelay
	}
	base.Enabled = cfg.Enabled
	if key, ok := cfg.Params["api_key"].(string); ok {
		s.APIKey = key
	}
	base.Headers["Authorization"] = "Bearer " + s.APIKey
	s.Init(base)
}

// quiverRow is the JSON shape one congressional-trading row takes,
// regardless of whether the response is a bare array or wrapped in one of
// the known container keys.
type quiverRow struct {
	Representative  string `json:"Representative"`
	Ticker          string `json:"Ticker"`
	Transaction     string `json:"Transaction"`
	TransactionDate string `json:"TransactionDate"`
	ReportDate      string `json:"ReportDate"`
	Range           string `json:"Range"`
	Amount          string `json:"Amount"`
	House           string `json:"House"`
	Party           string `json:"Party"`
	BioGuideID      string `json:"BioGuideID"`
}

func (s *QuiverQuantSource) Fetch(ctx context.Context, lookbackDays int) ([]model.RawDisclosure, error) {
	return s.FetchBatch(ctx, 0, 0, lookbackDays)
}

func (s *QuiverQuantSource) FetchBatch(ctx context.Context, offset, limit, lookbackDays int) ([]model.RawDisclosure, error) {
	if offset > 0 {
		return nil, nil
	}
	resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: "/beta/live/congresstrading"})
	if err != nil {
		return nil, fmt.Errorf("quiverquant fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quiverquant returned HTTP %d", resp.StatusCode)
	}
	if s.Archive != nil {
		if _, err := s.Archive.SaveAPIResponse(resp.Body, "quiverquant/congresstrading.json", s.Config.BaseURL+"/beta/live/congresstrading", "third_party"); err != nil {
			slog.Warn("quiverquant: archiving response failed", "error", err)
		}
	}

	rows, err := parseQuiverResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.RawDisclosure, 0, len(rows))
	for i, row := range rows {
		amount := row.Amount
		if amount == "" {
			amount = row.Range
		}
		out = append(out, model.RawDisclosure{
			Source:           "quiverquant",
			SourceType:       "third_party",
			ScrapedAt:        now,
			SourceDocumentID: fmt.Sprintf("qq-%s-%d", row.BioGuideID, i),
			RawData: map[string]any{
				"politician_name": row.Representative,
				// QuiverQuant's congresstrading feed never returns a company
				// name, only the ticker; using the ticker as asset_name keeps
				// Clean's required-field check satisfied without inventing a
				// name the source never provided.
				"asset_name":       row.Ticker,
				"asset_ticker":     row.Ticker,
				"transaction_type": row.Transaction,
				"transaction_date": row.TransactionDate,
				"disclosure_date":  row.ReportDate,
				"amount":           amount,
				"chamber":          row.House,
				"party":            row.Party,
				"bioguide_id":      row.BioGuideID,
			},
		})
	}
	return out, nil
}

// parseQuiverResponse handles both response shapes the API has returned
// historically: a bare JSON array, or an object wrapping the array under
// one of "trades", "data", or "results".
func parseQuiverResponse(body []byte) ([]quiverRow, error) {
	var asArray []quiverRow
	if err := json.Unmarshal(body, &asArray); err == nil {
		return asArray, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding quiverquant response: %w", err)
	}
	for _, key := range []string{"trades", "data", "results"} {
		if raw, ok := wrapped[key]; ok {
			var rows []quiverRow
			if err := json.Unmarshal(raw, &rows); err != nil {
				return nil, fmt.Errorf("decoding quiverquant %q: %w", key, err)
			}
			return rows, nil
		}
	}
	return nil, fmt.Errorf("quiverquant response had none of trades/data/results")
}
