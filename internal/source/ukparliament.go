package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gwicho38/polidisc/internal/httpclient"
	"github.com/gwicho38/polidisc/internal/model"
)

func init() {
	Register("uk_parliament", func() Source { return &UKParliamentSource{} })
}

// categoryMap translates the Register of Members' Financial Interests'
// numbered categories into the asset_type vocabulary the rest of the
// pipeline uses. Category 7 (shareholdings) is the only one this adapter
// turns into a disclosure record; interests in every other category are
// skipped.
var categoryMap = map[string]string{
	"1":  "employment_income",
	"2":  "donations",
	"7":  "shareholding",
	"7a": "shareholding",
	"7b": "shareholding",
}

// UKParliamentSource fetches registered financial interests from the UK
// Parliament Members API (members-api.parliament.uk), a JSON REST API
// rather than a scrape target.
type UKParliamentSource struct {
	Base
}

func (s *UKParliamentSource) Name() string { return "uk_parliament" }

func (s *UKParliamentSource) Configure(cfg Config) {
	base := defaultConfig("uk_parliament", "uk", "https://members-api.parliament.uk")
	if cfg.BaseURL != "" {
		base.BaseURL = cfg.BaseURL
	}
	if cfg.RequestDelay > 0 {
		base.RequestDelay = cfg.RequestDelay
	}
	base.Enabled = cfg.Enabled
	s.Init(base)
}

func (s *UKParliamentSource) Fetch(ctx context.Context, lookbackDays int) ([]model.RawDisclosure, error) {
	return s.FetchBatch(ctx, 0, 20, lookbackDays)
}

type ukMembersPage struct {
	Items []struct {
		Value struct {
			ID                int    `json:"id"`
			NameDisplayAs     string `json:"nameDisplayAs"`
			NameListAs        string `json:"nameListAs"`
			LatestParty       struct{ Name string `json:"name"` } `json:"latestParty"`
		} `json:"value"`
	} `json:"items"`
}

type ukInterest struct {
	Category    struct{ Name string `json:"name"`; Number string `json:"number"` } `json:"category"`
	Summary     string `json:"interestSummary"`
	RegisteredDate string `json:"createdWhen"`
}

func (s *UKParliamentSource) FetchBatch(ctx context.Context, offset, limit, lookbackDays int) ([]model.RawDisclosure, error) {
	membersURL := fmt.Sprintf("/api/Members/Search?skip=%d&take=%d&House=1", offset, limit)
	resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: membersURL})
	if err != nil {
		return nil, fmt.Errorf("uk parliament members search: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uk parliament members search returned HTTP %d", resp.StatusCode)
	}
	if s.Archive != nil {
		path := fmt.Sprintf("uk_parliament/members-%d-%d.json", offset, limit)
		if _, err := s.Archive.SaveAPIResponse(resp.Body, path, strings.TrimRight(s.Config.BaseURL, "/")+membersURL, "uk"); err != nil {
			slog.Warn("uk_parliament: archiving members page failed", "error", err)
		}
	}
	var page ukMembersPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("decoding uk parliament members page: %w", err)
	}

	now := time.Now().UTC()
	var out []model.RawDisclosure
	for _, item := range page.Items {
		memberID := item.Value.ID
		interestsURL := fmt.Sprintf("/api/Members/%d/RegisteredInterests", memberID)
		interestResp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: interestsURL})
		if err != nil || interestResp.StatusCode != http.StatusOK {
			continue
		}
		if s.Archive != nil {
			path := fmt.Sprintf("uk_parliament/member-%d-interests.json", memberID)
			if _, err := s.Archive.SaveAPIResponse(interestResp.Body, path, strings.TrimRight(s.Config.BaseURL, "/")+interestsURL, "uk"); err != nil {
				slog.Warn("uk_parliament: archiving member interests failed", "member_id", memberID, "error", err)
			}
		}
		var interestPayload struct {
			Value []struct {
				Interests []ukInterest `json:"interests"`
			} `json:"value"`
		}
		if err := json.Unmarshal(interestResp.Body, &interestPayload); err != nil {
			continue
		}
		for _, category := range interestPayload.Value {
			for i, interest := range category.Interests {
				assetType, recognized := categoryMap[interest.Category.Number]
				if !recognized || assetType != "shareholding" {
					continue // not a trading-relevant interest category
				}
				out = append(out, model.RawDisclosure{
					Source:           "uk_parliament",
					SourceType:       "uk",
					ScrapedAt:        now,
					SourceDocumentID: fmt.Sprintf("%d-%s-%d", memberID, interest.Category.Number, i),
					RawData: map[string]any{
						"member_id":       memberID,
						"full_name":       item.Value.NameDisplayAs,
						"party":           item.Value.LatestParty.Name,
						"category_number": interest.Category.Number,
						"category_name":   interest.Category.Name,
						"summary":         interest.Summary,
						"registered_date": interest.RegisteredDate,
						// The register records a holding, not a buy/sell
						// event, so transaction_date and disclosure_date
						// both take the date the interest was registered;
						// the interest summary text is the only asset
						// description the API provides.
						"politician_name":  item.Value.NameDisplayAs,
						"asset_name":       interest.Summary,
						"transaction_type": assetType,
						"transaction_date": interest.RegisteredDate,
						"disclosure_date":  interest.RegisteredDate,
					},
				})
			}
		}
	}
	return out, nil
}
